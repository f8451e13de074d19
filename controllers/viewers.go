package controllers

import (
	"errors"
	"fmt"
	"image/jpeg"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	uuid "github.com/twinj/uuid"

	"notescope/overlay"
	"notescope/panels"
	"notescope/utils"
	"notescope/viewer"
)

type CreateViewerInput struct {
	Images     []string                 `json:"images" binding:"required,min=1"`
	StartIndex int                      `json:"start_index"`
	Viewport   panels.Viewport          `json:"viewport"`
	Strategy   string                   `json:"strategy" binding:"omitempty,oneof=fine-grained batch"`
	Notes      map[string][]panels.Note `json:"notes"`
}

type NavigateInput struct {
	Index *int `json:"index" binding:"required"`
}

type KeyInput struct {
	Key         string `json:"key" binding:"required"`
	TextFocused bool   `json:"text_focused"`
}

type ScrollInput struct {
	DeltaY      float64 `json:"delta_y"`
	TextFocused bool    `json:"text_focused"`
}

type UpdatePanelInput struct {
	Content  *string       `json:"content"`
	Position *panels.Point `json:"position"`
	Size     *panels.Size  `json:"size"`
}

type PointerInput struct {
	Type    string        `json:"type" binding:"required,oneof=down move up"`
	PanelID string        `json:"panel_id"`
	Region  panels.Region `json:"region"`
	X       int           `json:"x"`
	Y       int           `json:"y"`
}

// ViewerState What a client needs to draw a viewer session
type ViewerState struct {
	ID       string          `json:"id"`
	Images   []string        `json:"images"`
	Index    int             `json:"index"`
	ImageKey string          `json:"image_key"`
	Strategy string          `json:"strategy"`
	Viewport panels.Viewport `json:"viewport"`
	Panels   []panels.Panel  `json:"panels"`
}

func viewerState(id string, host *viewer.Host) (ViewerState, error) {
	collection, err := host.Collection()
	if err != nil {
		return ViewerState{}, err
	}
	images := host.Images()
	index := host.Index()
	return ViewerState{
		ID:       id,
		Images:   images,
		Index:    index,
		ImageKey: images[index],
		Strategy: collection.Strategy().String(),
		Viewport: host.Viewport(),
		Panels:   collection.Panels(),
	}, nil
}

// viewerStatus Map a viewer or collection error to an HTTP status
func viewerStatus(err error) int {
	switch {
	case viewer.IsNotFound(err),
		errors.Is(err, viewer.ErrClosed),
		errors.Is(err, panels.ErrClosed),
		errors.Is(err, panels.ErrUnknownPanel):
		return http.StatusNotFound
	case errors.Is(err, viewer.ErrNoImages),
		errors.Is(err, viewer.ErrBadIndex),
		errors.Is(err, panels.ErrNotBatch):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func abortWithError(c *gin.Context, err error) {
	c.JSON(viewerStatus(err), gin.H{"error": err.Error()})
}

// parseSession Find the viewer session named in the route
func parseSession(c *gin.Context, cache *viewer.LocalCache) (string, *viewer.Host, bool) {
	id := c.Param("id")
	host, err := cache.Read(id)
	if err != nil {
		abortWithError(c, err)
		return id, nil, false
	}
	return id, host, true
}

func parseCollection(c *gin.Context, cache *viewer.LocalCache) (*viewer.Host, *panels.Collection, bool) {
	_, host, ok := parseSession(c, cache)
	if !ok {
		return nil, nil, false
	}
	collection, err := host.Collection()
	if err != nil {
		abortWithError(c, err)
		return nil, nil, false
	}
	return host, collection, true
}

func writeState(c *gin.Context, id string, host *viewer.Host, status int, extra gin.H) {
	state, err := viewerState(id, host)
	if err != nil {
		abortWithError(c, err)
		return
	}
	data := gin.H{"viewer": state}
	for k, v := range extra {
		data[k] = v
	}
	c.JSON(status, gin.H{"data": data})
}

// CreateViewer Open a viewer session on an ordered list of screenshots
func CreateViewer(cache *viewer.LocalCache, adapter panels.Adapter, config *utils.Config) gin.HandlerFunc {
	limits := config.Limits()
	fn := func(c *gin.Context) {
		var input CreateViewerInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := config.CheckViewport(input.Viewport); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		id := uuid.NewV4().String()
		host := viewer.NewHost(viewer.Options{
			Adapter:  adapter,
			Viewport: input.Viewport,
			Limits:   limits,
			Strategy: panels.ParseStrategy(input.Strategy),
			OnNavigate: func(index int, imageKey string) {
				log.WithField("viewer", id).Debug(fmt.Sprintf("Showing image %d: %s", index, imageKey))
			},
		})
		if err := host.Open(c.Request.Context(), input.Images, input.StartIndex, input.Notes); err != nil {
			abortWithError(c, err)
			return
		}
		cache.Add(id, host)
		writeState(c, id, host, http.StatusCreated, nil)
	}
	return fn
}

// GetViewer Current image and panels of a session
func GetViewer(cache *viewer.LocalCache) gin.HandlerFunc {
	fn := func(c *gin.Context) {
		id, host, ok := parseSession(c, cache)
		if !ok {
			return
		}
		writeState(c, id, host, http.StatusOK, nil)
	}
	return fn
}

// CloseViewer Flush and close a session
func CloseViewer(cache *viewer.LocalCache) gin.HandlerFunc {
	fn := func(c *gin.Context) {
		if err := cache.Remove(c.Param("id")); err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": true})
	}
	return fn
}

// NavigateViewer Jump to an image by index
func NavigateViewer(cache *viewer.LocalCache) gin.HandlerFunc {
	fn := func(c *gin.Context) {
		id, host, ok := parseSession(c, cache)
		if !ok {
			return
		}
		var input NavigateInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		moved, err := host.Navigate(c.Request.Context(), *input.Index)
		if err != nil {
			abortWithError(c, err)
			return
		}
		writeState(c, id, host, http.StatusOK, gin.H{"moved": moved})
	}
	return fn
}

// ViewerKey Deliver a key press. Escape closes the session.
func ViewerKey(cache *viewer.LocalCache) gin.HandlerFunc {
	fn := func(c *gin.Context) {
		id, host, ok := parseSession(c, cache)
		if !ok {
			return
		}
		var input KeyInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		handled, err := host.HandleKey(c.Request.Context(), input.Key, input.TextFocused)
		if err != nil {
			abortWithError(c, err)
			return
		}
		if !host.IsOpen() {
			if err := cache.Remove(id); err != nil && !viewer.IsNotFound(err) {
				log.Warn("Dropping closed viewer failed: ", err)
			}
			c.JSON(http.StatusOK, gin.H{"data": gin.H{"handled": handled, "closed": true}})
			return
		}
		writeState(c, id, host, http.StatusOK, gin.H{"handled": handled})
	}
	return fn
}

// ViewerScroll Deliver a wheel event
func ViewerScroll(cache *viewer.LocalCache) gin.HandlerFunc {
	fn := func(c *gin.Context) {
		id, host, ok := parseSession(c, cache)
		if !ok {
			return
		}
		var input ScrollInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		moved, err := host.HandleScroll(c.Request.Context(), input.DeltaY, input.TextFocused)
		if err != nil {
			abortWithError(c, err)
			return
		}
		writeState(c, id, host, http.StatusOK, gin.H{"moved": moved})
	}
	return fn
}

// SetViewerViewport Record a resized browser window
func SetViewerViewport(cache *viewer.LocalCache, config *utils.Config) gin.HandlerFunc {
	fn := func(c *gin.Context) {
		id, host, ok := parseSession(c, cache)
		if !ok {
			return
		}
		var input panels.Viewport
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := config.CheckViewport(input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		host.SetViewport(input)
		writeState(c, id, host, http.StatusOK, nil)
	}
	return fn
}

// AddPanel Add a panel to the current image
func AddPanel(cache *viewer.LocalCache) gin.HandlerFunc {
	fn := func(c *gin.Context) {
		_, collection, ok := parseCollection(c, cache)
		if !ok {
			return
		}
		panel, err := collection.AddPanel()
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"data": panel})
	}
	return fn
}

// UpdatePanel Change the text and/or geometry of a panel
func UpdatePanel(cache *viewer.LocalCache) gin.HandlerFunc {
	fn := func(c *gin.Context) {
		_, collection, ok := parseCollection(c, cache)
		if !ok {
			return
		}
		var input UpdatePanelInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		pid := c.Param("pid")
		panel, err := collection.Panel(pid)
		if err != nil {
			abortWithError(c, err)
			return
		}
		if input.Content != nil {
			if panel, err = collection.UpdateContent(pid, *input.Content); err != nil {
				abortWithError(c, err)
				return
			}
		}
		if input.Position != nil || input.Size != nil {
			position, size := panel.Position, panel.Size
			if input.Position != nil {
				position = *input.Position
			}
			if input.Size != nil {
				size = *input.Size
			}
			if panel, err = collection.UpdatePositionAndSize(pid, position, size); err != nil {
				abortWithError(c, err)
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"data": panel})
	}
	return fn
}

// RemovePanel Remove a panel. The last panel is cleared instead.
func RemovePanel(cache *viewer.LocalCache) gin.HandlerFunc {
	fn := func(c *gin.Context) {
		_, collection, ok := parseCollection(c, cache)
		if !ok {
			return
		}
		remaining, err := collection.RemovePanel(c.Param("pid"))
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": remaining})
	}
	return fn
}

// ViewerPointer Deliver a pointer down, move or up event
func ViewerPointer(cache *viewer.LocalCache) gin.HandlerFunc {
	fn := func(c *gin.Context) {
		_, host, ok := parseSession(c, cache)
		if !ok {
			return
		}
		var input PointerInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		pointer := panels.Point{X: input.X, Y: input.Y}
		switch input.Type {
		case "down":
			started, err := host.PointerDown(input.PanelID, input.Region, pointer)
			if err != nil {
				abortWithError(c, err)
				return
			}
			c.JSON(http.StatusOK, gin.H{"data": gin.H{"panel_id": input.PanelID, "started": started}})
		case "move":
			pid, position, size, moved := host.PointerMove(pointer)
			c.JSON(http.StatusOK, gin.H{"data": gin.H{
				"panel_id": pid, "moved": moved, "position": position, "size": size,
			}})
		case "up":
			pid, ended := host.PointerUp()
			c.JSON(http.StatusOK, gin.H{"data": gin.H{"panel_id": pid, "ended": ended}})
		}
	}
	return fn
}

// ReconcileViewer Write the pending edits of a batch session
func ReconcileViewer(cache *viewer.LocalCache) gin.HandlerFunc {
	fn := func(c *gin.Context) {
		_, collection, ok := parseCollection(c, cache)
		if !ok {
			return
		}
		changes, err := collection.Reconcile()
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": gin.H{"changes": changes, "panels": collection.Panels()}})
	}
	return fn
}

// GetOverlay Render the panel layout of a session as overlay.{png,jpg}
func GetOverlay(cache *viewer.LocalCache, config *utils.Config) gin.HandlerFunc {
	fn := func(c *gin.Context) {
		host, collection, ok := parseCollection(c, cache)
		if !ok {
			return
		}
		// Only overlay.{jpg,png} is allowed in the route
		splitPath := strings.Split(c.FullPath(), ".")
		format := splitPath[len(splitPath)-1]

		maxSide := config.Overlay.MaxSide
		if size := c.Query("size"); size != "" {
			sizeInt, err := strconv.Atoi(size)
			if err != nil || sizeInt <= 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Incorrect value for size."})
				return
			}
			if sizeInt > 2048 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Too large overlay requested."})
				return
			}
			maxSide = sizeInt
		}
		jpgQuality := config.Overlay.JpgQuality
		if quality := c.Query("Q"); quality != "" {
			if format != "jpg" {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Compression quality only makes sense for jpg."})
				return
			}
			q, err := strconv.Atoi(quality)
			if err != nil || q < 1 || q > 100 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Incorrect value for quality."})
				return
			}
			jpgQuality = q
		}

		img, err := overlay.Render(host.Viewport(), collection.Panels(), maxSide)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		var buf *[]byte
		contentType := "image/png"
		if format == "jpg" {
			contentType = "image/jpeg"
			buf, err = utils.ImageToJpgBuffer(img, &jpeg.Options{Quality: jpgQuality})
		} else {
			buf, err = utils.ImageToPngBuffer(img)
		}
		if err != nil {
			log.Warn(fmt.Sprintf("Error writing overlay with content type %s: %s", contentType, err.Error()))
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.Data(http.StatusOK, contentType, *buf)
	}
	return fn
}
