package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/specialistvlad/femloop/internal/ctxlog"
	"github.com/specialistvlad/femloop/internal/journal"
	"github.com/specialistvlad/femloop/internal/params"
)

const (
	defaultRunsLimit = 20
	shutdownTimeout  = 5 * time.Second
)

// ControlStatus mirrors the control record.
type ControlStatus struct {
	Go   bool `json:"go"`
	Done bool `json:"done"`
	Kill bool `json:"kill"`
	Runs int  `json:"runs"`
}

// Status is a snapshot of the session and the solver process.
type Status struct {
	Session   string            `json:"session"`
	State     string            `json:"state"`
	Job       string            `json:"job"`
	Running   bool              `json:"running"`
	Control   ControlStatus     `json:"control"`
	LastInput map[string]string `json:"last_input,omitempty"`
	LastError string            `json:"last_error,omitempty"`
}

// RunView is the JSON form of a journal record.
type RunView struct {
	ID         string            `json:"id"`
	Session    string            `json:"session"`
	Run        int               `json:"run"`
	Job        string            `json:"job"`
	Inputs     map[string]string `json:"inputs"`
	Outputs    map[string]string `json:"outputs,omitempty"`
	Mismatches int               `json:"mismatches"`
	Started    time.Time         `json:"started"`
	ElapsedMs  int64             `json:"elapsed_ms"`
	Error      string            `json:"error,omitempty"`
}

// Status checks the solver and reads the control record.
func (a *App) Status(ctx context.Context) (Status, error) {
	ctx = a.Context(ctx)
	sup := a.session.Supervisor()
	running, err := sup.IsRunning(ctx)
	if err != nil {
		return Status{}, err
	}
	rec, err := sup.Channel().Read()
	if err != nil {
		return Status{}, err
	}
	rs := a.session.RunState()
	st := Status{
		Session:   a.session.ID(),
		State:     a.session.State().String(),
		Job:       rs.JobName,
		Running:   running,
		Control:   ControlStatus{Go: rec.Go, Done: rec.Done, Kill: rec.Kill, Runs: rec.Runs},
		LastInput: setMap(rs.LastInput),
	}
	if err := a.session.LastError(); err != nil {
		st.LastError = err.Error()
	}
	return st, nil
}

// Recent returns the newest journal records as views.
func (a *App) Recent(ctx context.Context, limit int) ([]RunView, error) {
	recs, err := a.journal.Recent(ctx, limit)
	if err != nil {
		return nil, err
	}
	views := make([]RunView, 0, len(recs))
	for _, rec := range recs {
		views = append(views, newRunView(rec))
	}
	return views, nil
}

func newRunView(rec journal.Record) RunView {
	return RunView{
		ID:         rec.ID,
		Session:    rec.Session,
		Run:        rec.Run,
		Job:        rec.Job,
		Inputs:     setMap(rec.Inputs),
		Outputs:    setMap(rec.Outputs),
		Mismatches: rec.Mismatches,
		Started:    rec.Started,
		ElapsedMs:  rec.Elapsed.Milliseconds(),
		Error:      rec.Error,
	}
}

func setMap(s *params.Set) map[string]string {
	if s == nil || s.Len() == 0 {
		return nil
	}
	out := make(map[string]string, s.Len())
	s.Range(func(name string, v params.Value) bool {
		out[name] = v.String()
		return true
	})
	return out
}

// statusRouter builds the gin engine serving the status endpoints.
func (a *App) statusRouter() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), func(c *gin.Context) {
		a.logger.Debug("Status endpoint hit.", "remote_addr", c.Request.RemoteAddr, "path", c.Request.URL.Path)
		c.Next()
	})

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK\n")
	})
	r.GET("/status", func(c *gin.Context) {
		st, err := a.Status(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, st)
	})
	r.GET("/runs", func(c *gin.Context) {
		limit := defaultRunsLimit
		if raw := c.Query("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
				return
			}
			limit = n
		}
		views, err := a.Recent(c.Request.Context(), limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, views)
	})
	r.GET("/runs/:id", func(c *gin.Context) {
		rec, err := a.journal.Get(c.Request.Context(), c.Param("id"))
		if errors.Is(err, journal.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, newRunView(rec))
	})
	return r
}

// ServeStatus runs the status server until ctx is done, then shuts it down.
// It returns at once when no port is configured.
func (a *App) ServeStatus(ctx context.Context) error {
	ctx = a.Context(ctx)
	logger := ctxlog.FromContext(ctx)
	port := a.config.Status.Port
	if port <= 0 {
		logger.Debug("Status server not started: disabled.")
		return nil
	}

	addr := fmt.Sprintf(":%d", port)
	srv := &http.Server{Addr: addr, Handler: a.statusRouter()}
	a.serverMu.Lock()
	a.httpServer = srv
	a.serverMu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("🩺 Status server starting", "address", fmt.Sprintf("http://localhost%s/status", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, failed := <-errCh:
		if failed {
			logger.Error("Status server failed unexpectedly", "error", err)
			return fmt.Errorf("status server: %w", err)
		}
		return nil
	case <-ctx.Done():
		return a.closeStatusServer(ctx)
	}
}

func (a *App) closeStatusServer(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	a.serverMu.Lock()
	srv := a.httpServer
	a.httpServer = nil
	a.serverMu.Unlock()

	if srv == nil {
		logger.Debug("Status server was not running.")
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	logger.Info("🩺 Shutting down status server...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Status server shutdown failed", "error", err)
		return err
	}
	logger.Debug("Status server shut down gracefully.")
	return nil
}
