package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"visionstream/internal/logger"
	"visionstream/internal/service"
	"visionstream/internal/service/stream"
)

// VideoFeedHandler streams annotated camera frames as multipart/x-mixed-replace.
// The capture loop runs on the request goroutine, so a slow client slows the
// camera down instead of queueing frames.
func VideoFeedHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		session, err := manager.OpenStream(ctx)
		if errors.Is(err, service.ErrStreamBusy) {
			http.Error(w, "Stream already in use", http.StatusConflict)
			return
		}

		w.Header().Set("Content-Type", stream.MediaType)
		w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
		w.Header().Set("Connection", "close")

		if err != nil {
			// The client still gets a valid, empty stream.
			logger.Error("Stream not started: %v", err)
			w.WriteHeader(http.StatusOK)
			return
		}
		defer session.Close()

		writer := stream.NewPartWriter(w)
		for {
			part, err := session.Next(ctx)
			if err != nil {
				if !errors.Is(err, io.EOF) && !errors.Is(err, context.Canceled) {
					logger.Warning("Stream ended: %v", err)
				}
				return
			}
			if err := writer.WritePart(part); err != nil {
				logger.Info("Stream consumer disconnected after %d frames", part.Seq-1)
				return
			}
		}
	}
}
