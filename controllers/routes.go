package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"notescope/store"
	"notescope/utils"
	"notescope/viewer"
)

// Version The API version reported on /version
const Version = "v0.1.0"

// Register Attach the notes and viewer API to a router
// Currently no authentication is used
func Register(r *gin.Engine, notes *store.NoteStore, cache *viewer.LocalCache, config *utils.Config) {
	limits := config.Limits()

	// Version tag to test against
	r.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": Version,
		})
	})

	api := r.Group("/api")
	v1 := api.Group("/v1")
	{
		v1.GET("/notes", FindNotes(notes))
		v1.POST("/notes", CreateNote(notes, limits))
		v1.PATCH("/notes/:id", UpdateNote(notes, limits))
		v1.PATCH("/notes/:id/position", UpdateNotePosition(notes, limits))
		v1.DELETE("/notes/:id", DeleteNote(notes))
		v1.POST("/notes/migrate-legacy", MigrateLegacyNotes(notes))
	}

	// Viewer sessions live in the cache and are closed once they expire,
	// which flushes their pending edits.
	viewers := v1.Group("/viewers")
	{
		viewers.POST("", CreateViewer(cache, notes, config))
		viewers.GET("/:id", GetViewer(cache))
		viewers.DELETE("/:id", CloseViewer(cache))
		viewers.POST("/:id/navigate", NavigateViewer(cache))
		viewers.POST("/:id/keys", ViewerKey(cache))
		viewers.POST("/:id/scroll", ViewerScroll(cache))
		viewers.PUT("/:id/viewport", SetViewerViewport(cache, config))
		viewers.POST("/:id/panels", AddPanel(cache))
		viewers.PATCH("/:id/panels/:pid", UpdatePanel(cache))
		viewers.DELETE("/:id/panels/:pid", RemovePanel(cache))
		viewers.POST("/:id/pointer", ViewerPointer(cache))
		viewers.POST("/:id/reconcile", ReconcileViewer(cache))

		// Overlay routes
		viewers.GET("/:id/overlay.png", GetOverlay(cache, config))
		viewers.GET("/:id/overlay.jpg", GetOverlay(cache, config))
	}
}
