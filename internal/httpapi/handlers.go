package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/xeonx/timeago"

	"github.com/plughost/plughost/internal/manager"
	"github.com/plughost/plughost/pkg/plugin"
)

// pluginView adds the loaded_ago rendering the CLI and HTTP front-ends
// both compute from a plugin.Info projection, per §3's supplemental note.
type pluginView struct {
	plugin.Info
	LoadedAgo string `json:"loaded_ago,omitempty"`
}

func renderPlugin(info plugin.Info) pluginView {
	v := pluginView{Info: info}
	if info.Loaded && !info.LoadedAt.IsZero() {
		v.LoadedAgo = timeago.English.Format(info.LoadedAt)
	}
	return v
}

func (s *Server) listPlugins(c *gin.Context) {
	list := s.mgr.List()
	views := make([]pluginView, 0, len(list))
	for _, info := range list {
		views = append(views, renderPlugin(info))
	}
	ok(c, http.StatusOK, views)
}

type executeRequest struct {
	Input string `json:"input"`
}

func (s *Server) executePlugin(c *gin.Context) {
	name := c.Param("name")

	var req executeRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, "malformed request body")
			return
		}
	}

	result := s.mgr.Execute(name, req.Input, manager.DefaultExecutionOptions())
	if result.Err != nil {
		switch result.Err.Kind {
		case plugin.KindNotFound:
			fail(c, http.StatusNotFound, result.Err.Error())
		case plugin.KindDisabled:
			fail(c, http.StatusConflict, result.Err.Error())
		default:
			fail(c, http.StatusInternalServerError, result.Err.Error())
		}
		return
	}
	ok(c, http.StatusOK, result)
}

func (s *Server) setEnabled(enabled bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Param("name")

		var err error
		if enabled {
			err = s.mgr.Enable(name)
		} else {
			err = s.mgr.Disable(name)
		}
		if err != nil {
			if plugin.IsKind(err, plugin.KindNotFound) {
				fail(c, http.StatusNotFound, err.Error())
				return
			}
			fail(c, http.StatusInternalServerError, err.Error())
			return
		}

		info, err := s.mgr.Get(name)
		if err != nil {
			fail(c, http.StatusNotFound, err.Error())
			return
		}
		ok(c, http.StatusOK, renderPlugin(info))
	}
}

func (s *Server) rescan(c *gin.Context) {
	report, err := s.mgr.Rescan()
	if err != nil {
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	ok(c, http.StatusOK, report)
}

func (s *Server) history(c *gin.Context) {
	store := s.mgr.History()
	if store == nil {
		ok(c, http.StatusOK, []interface{}{})
		return
	}

	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	records, err := store.Recent(c.Query("plugin"), limit)
	if err != nil {
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	ok(c, http.StatusOK, records)
}
