package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vvka-141/sqlexplorer/internal/cache"
	"github.com/vvka-141/sqlexplorer/internal/export"
	"github.com/vvka-141/sqlexplorer/internal/pool"
	"github.com/vvka-141/sqlexplorer/internal/query"
	"github.com/vvka-141/sqlexplorer/pkg/sqlexplorer"
)

// Querier is the part of *query.Service the API uses.
type Querier interface {
	Execute(ctx context.Context, req sqlexplorer.QueryRequest) (*query.Outcome, error)
	Tables(ctx context.Context) (*query.Outcome, error)
	DatabaseInfo(ctx context.Context) (*query.Outcome, error)
	ClearCache(ctx context.Context)
	Ping(ctx context.Context) error
	PoolStats() pool.Stats
	CacheStats() cache.Stats
	Close(ctx context.Context) error
}

// QueryBody is the JSON body of the /api/query endpoints.
type QueryBody struct {
	Query      string `json:"query"`
	Params     []any  `json:"params"`
	UseCache   *bool  `json:"use_cache"`
	TTLSeconds int    `json:"ttl_seconds"`
}

// Request converts the body. use_cache=false bypasses the cache read but still refreshes the entry.
func (b QueryBody) Request() (sqlexplorer.QueryRequest, error) {
	params := make([]any, len(b.Params))
	for i, p := range b.Params {
		v, err := paramValue(p)
		if err != nil {
			return sqlexplorer.QueryRequest{}, fmt.Errorf("params[%d]: %w", i, err)
		}
		params[i] = v
	}
	if b.TTLSeconds < 0 {
		return sqlexplorer.QueryRequest{}, errors.New("ttl_seconds cannot be negative")
	}
	return sqlexplorer.QueryRequest{
		Statement:    b.Query,
		Params:       params,
		TTL:          time.Duration(b.TTLSeconds) * time.Second,
		ForceRefresh: b.UseCache != nil && !*b.UseCache,
	}, nil
}

// paramValue narrows decoded JSON onto driver-friendly scalars.
func paramValue(v any) (any, error) {
	switch x := v.(type) {
	case nil, string, bool:
		return x, nil
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i, nil
		}
		f, err := x.Float64()
		if err != nil {
			return nil, err
		}
		return f, nil
	}
	return nil, fmt.Errorf("unsupported parameter type %T", v)
}

// QueryResponse is the body of a successful /api/query.
type QueryResponse struct {
	export.Table
	ExecutionTime float64   `json:"execution_time"`
	Timestamp     time.Time `json:"timestamp"`
	Cached        bool      `json:"cached"`
	Attempts      int       `json:"attempts"`
}

func newQueryResponse(o *query.Outcome) QueryResponse {
	return QueryResponse{
		Table:         export.NewTable(o.Result),
		ExecutionTime: o.Elapsed.Seconds(),
		Timestamp:     time.Now().UTC(),
		Cached:        o.Cached,
		Attempts:      o.Attempts,
	}
}

type tokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// token accepts an OAuth2 password form or a JSON body.
func (s *Server) token(c *gin.Context) {
	var creds struct {
		Username string `json:"username" form:"username"`
		Password string `json:"password" form:"password"`
	}
	if err := c.ShouldBind(&creds); err != nil || creds.Username == "" {
		writeError(c, http.StatusBadRequest, "BadRequest", "username and password are required")
		return
	}
	token, expires, err := s.auth.Login(creds.Username, creds.Password)
	if err != nil {
		s.log.Warn("login failed", "user", creds.Username, "client_ip", c.ClientIP())
		unauthorized(c, err)
		return
	}
	c.JSON(http.StatusOK, tokenResponse{AccessToken: token, TokenType: "bearer", ExpiresAt: expires})
}

type healthResponse struct {
	Status    string      `json:"status"`
	Database  string      `json:"database"`
	Pool      pool.Stats  `json:"pool"`
	Cache     cache.Stats `json:"cache"`
	Timestamp time.Time   `json:"timestamp"`
}

func (s *Server) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	resp := healthResponse{
		Status:    "ok",
		Database:  "connected",
		Timestamp: time.Now().UTC(),
	}
	status := http.StatusOK
	if err := s.svc.Ping(ctx); err != nil {
		s.log.Warn("health check ping failed", "error", err)
		resp.Status = "degraded"
		resp.Database = err.Error()
		status = http.StatusServiceUnavailable
	}
	resp.Pool = s.svc.PoolStats()
	resp.Cache = s.svc.CacheStats()
	c.JSON(status, resp)
}

// runQuery decodes the body and executes it. It writes the error response itself.
func (s *Server) runQuery(c *gin.Context) (*query.Outcome, bool) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		writeError(c, http.StatusBadRequest, "BadRequest", "could not read request body")
		return nil, false
	}
	var qb QueryBody
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&qb); err != nil {
		writeError(c, http.StatusBadRequest, "BadRequest", "invalid JSON body: "+err.Error())
		return nil, false
	}
	req, err := qb.Request()
	if err != nil {
		writeError(c, http.StatusBadRequest, "BadRequest", err.Error())
		return nil, false
	}
	if err := req.Validate(); err != nil {
		writeError(c, http.StatusBadRequest, "BadRequest", err.Error())
		return nil, false
	}

	out, err := s.svc.Execute(c.Request.Context(), req)
	if err != nil {
		writeQueryError(c, err)
		return nil, false
	}
	return out, true
}

func (s *Server) query(c *gin.Context) {
	out, ok := s.runQuery(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, newQueryResponse(out))
}

func (s *Server) queryCSV(c *gin.Context) {
	out, ok := s.runQuery(c)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := export.WriteCSV(&buf, out.Result); err != nil {
		writeError(c, http.StatusInternalServerError, "ExportError", err.Error())
		return
	}
	c.Header("Content-Disposition", `attachment; filename="query_results.csv"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

func (s *Server) queryXLSX(c *gin.Context) {
	out, ok := s.runQuery(c)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := export.WriteXLSX(&buf, out.Result); err != nil {
		writeError(c, http.StatusInternalServerError, "ExportError", err.Error())
		return
	}
	c.Header("Content-Disposition", `attachment; filename="query_results.xlsx"`)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}

func (s *Server) tables(c *gin.Context) {
	out, err := s.svc.Tables(c.Request.Context())
	if err != nil {
		writeQueryError(c, err)
		return
	}
	c.JSON(http.StatusOK, newQueryResponse(out))
}

func (s *Server) databaseInfo(c *gin.Context) {
	out, err := s.svc.DatabaseInfo(c.Request.Context())
	if err != nil {
		writeQueryError(c, err)
		return
	}
	c.JSON(http.StatusOK, newQueryResponse(out))
}

func (s *Server) clearCache(c *gin.Context) {
	s.svc.ClearCache(c.Request.Context())
	s.log.Info("cache cleared", "user", c.GetString(UserKey))
	c.JSON(http.StatusOK, gin.H{"status": "cleared"})
}
