package server

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/genricoloni/ytmpresence/internal/bridge"
	"github.com/genricoloni/ytmpresence/internal/domain"
	"go.uber.org/zap"
)

func writeJSON(logger *zap.Logger, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("Encoding response failed", zap.Error(err))
	}
}

func writeError(logger *zap.Logger, w http.ResponseWriter, status int, msg string) {
	writeJSON(logger, w, status, map[string]string{"error": msg})
}

// readMessage decodes and validates a bridge envelope from the request body
func readMessage(r *http.Request) (domain.Message, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return domain.Message{}, err
	}
	return bridge.Decode(body)
}
