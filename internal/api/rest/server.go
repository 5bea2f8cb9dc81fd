package rest

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"fxarb/internal/pnl"
)

// Source is where the API reads trading results from.
type Source interface {
	Snapshot() pnl.Summary
}

type Server struct{ router *gin.Engine }

type holding struct {
	Currency int     `json:"currency"`
	Amount   float64 `json:"amount"`
}

func New(src Source) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	g := router.Group("/api")
	g.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, src.Snapshot())
	})
	g.GET("/holdings", func(c *gin.Context) {
		s := src.Snapshot()
		all := c.Query("all") == "true"
		out := make([]holding, 0, len(s.Holdings))
		for i, a := range s.Holdings {
			if a != 0 || all {
				out = append(out, holding{Currency: i, Amount: a})
			}
		}
		c.JSON(http.StatusOK, gin.H{"total": s.LastTotal, "holdings": out})
	})
	g.GET("/holdings/:currency", func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("currency"))
		s := src.Snapshot()
		if err != nil || id < 0 || id >= len(s.Holdings) {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown currency"})
			return
		}
		c.JSON(http.StatusOK, holding{Currency: id, Amount: s.Holdings[id]})
	})
	g.GET("/cycle", func(c *gin.Context) {
		s := src.Snapshot()
		if s.LastCycle == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "no cycle traded yet"})
			return
		}
		c.JSON(http.StatusOK, s.LastCycle)
	})
	return &Server{router: router}
}

func (s *Server) Handler() http.Handler { return s.router }
