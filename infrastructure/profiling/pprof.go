// Package profiling mounts the runtime profiling endpoints on a Gin router.
package profiling

import (
	"net/http/pprof"

	"github.com/gin-gonic/gin"
)

// Prefix is where the profiles are served, relative to the group passed to Register.
const Prefix = "/debug/pprof"

// Register mounts the pprof index and named profiles under Prefix:
//
//	GET  /debug/pprof/              index
//	GET  /debug/pprof/heap          any runtime/pprof profile by name
//	GET  /debug/pprof/profile       CPU profile (?seconds=30)
//	GET  /debug/pprof/trace         execution trace
//	GET  /debug/pprof/cmdline
//	GET|POST /debug/pprof/symbol
func Register(r gin.IRouter) {
	g := r.Group(Prefix)
	g.GET("/", gin.WrapF(pprof.Index))
	g.GET("/cmdline", gin.WrapF(pprof.Cmdline))
	g.GET("/profile", gin.WrapF(pprof.Profile))
	g.GET("/symbol", gin.WrapF(pprof.Symbol))
	g.POST("/symbol", gin.WrapF(pprof.Symbol))
	g.GET("/trace", gin.WrapF(pprof.Trace))
	g.GET("/:profile", func(c *gin.Context) {
		pprof.Handler(c.Param("profile")).ServeHTTP(c.Writer, c.Request)
	})
}
