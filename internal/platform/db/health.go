package db

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

// Checker reports whether a backing store is reachable.
type Checker interface {
	Check(ctx context.Context) (details interface{}, err error)
}

type pgChecker struct{ pool *pgxpool.Pool }

func PGChecker(pool *pgxpool.Pool) Checker { return pgChecker{pool: pool} }

type pgPoolStats struct {
	TotalConns    int32 `json:"total_conns"`
	IdleConns     int32 `json:"idle_conns"`
	AcquiredConns int32 `json:"acquired_conns"`
	MaxConns      int32 `json:"max_conns"`
}

func (p pgChecker) Check(ctx context.Context) (interface{}, error) {
	st := p.pool.Stat()
	return pgPoolStats{
		TotalConns:    st.TotalConns(),
		IdleConns:     st.IdleConns(),
		AcquiredConns: st.AcquiredConns(),
		MaxConns:      st.MaxConns(),
	}, p.pool.Ping(ctx)
}

type sqlChecker struct{ db *sql.DB }

func SQLChecker(sqlDB *sql.DB) Checker { return sqlChecker{db: sqlDB} }

func (s sqlChecker) Check(ctx context.Context) (interface{}, error) {
	return s.db.Stats(), s.db.PingContext(ctx)
}

// HealthHandler returns a handler for the store health check endpoint. A nil
// checker reports the in-memory store as always healthy.
func HealthHandler(driver string, checker Checker) echo.HandlerFunc {
	return func(c echo.Context) error {
		if checker == nil {
			return c.JSON(http.StatusOK, map[string]interface{}{"status": "healthy", "driver": driver})
		}

		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()

		details, err := checker.Check(ctx)
		if err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]interface{}{
				"status": "unhealthy",
				"driver": driver,
				"error":  err.Error(),
				"pool":   details,
			})
		}

		return c.JSON(http.StatusOK, map[string]interface{}{
			"status": "healthy",
			"driver": driver,
			"pool":   details,
		})
	}
}
