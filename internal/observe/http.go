package observe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hongjun500/chat-relay/pkg/logger"
)

// TranscriptSource 只读访问广播记录
type TranscriptSource interface {
	Entries() []string
	Len() int
}

// TranscriptResponse /transcript 的返回体
type TranscriptResponse struct {
	Count    int      `json:"count"`
	Messages []string `json:"messages"`
}

// NewRouter 管理接口：/healthz、/metrics、/transcript
func NewRouter(transcript TranscriptSource) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprintln(w, "ok")
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/transcript", func(w http.ResponseWriter, r *http.Request) {
		msgs := []string{}
		if transcript != nil {
			msgs = transcript.Entries()
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(TranscriptResponse{Count: len(msgs), Messages: msgs}); err != nil {
			logger.L().Sugar().Warnw("transcript_encode_error", "error", err)
		}
	})
	return r
}

// ServeHTTP 在已监听的 ln 上提供管理接口，ctx 结束时优雅关闭
func ServeHTTP(ctx context.Context, ln net.Listener, h http.Handler) error {
	srv := &http.Server{Handler: h, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.L().Sugar().Infow("metrics_listen", "addr", ln.Addr().String())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// StartHTTP 监听 addr 并阻塞提供管理接口
func StartHTTP(ctx context.Context, addr string, transcript TranscriptSource) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return ServeHTTP(ctx, ln, NewRouter(transcript))
}
