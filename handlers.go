package main

import (
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"ecoscout/pkg/config"
	"ecoscout/pkg/engine"
	"ecoscout/pkg/plate"
)

// multipart envelope allowance on top of the file size limit
const formOverhead = 1 << 20

type server struct {
	cfg *config.Config
	eng *engine.Engine
}

func newServer(cfg *config.Config, eng *engine.Engine) *server {
	return &server{cfg: cfg, eng: eng}
}

func setupRoutes(r *gin.Engine, s *server) {
	r.Use(requestIDMiddleware(), corsMiddleware())
	r.GET("/", homeHandler)
	r.GET("/health", s.healthHandler)

	detect := r.Group("")
	if s.cfg.JWTSecret != "" {
		detect.Use(jwtAuthMiddleware([]byte(s.cfg.JWTSecret)))
	}
	detect.POST("/detect", s.detectHandler)
}

func homeHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "EcoScout Backend is Running"})
}

func (s *server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"detector":   s.eng.DetectorName,
		"recognizer": s.eng.RecognizerName,
	})
}

// detectHandler runs the plate pipeline on the uploaded "file" part.
func (s *server) detectHandler(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.MaxUploadBytes+formOverhead)

	file, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"detail": "File too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"detail": "No file uploaded"})
		return
	}
	ct := file.Header.Get("Content-Type")
	if !strings.HasPrefix(ct, "image/") {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "File must be an image"})
		return
	}
	if file.Size > s.cfg.MaxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"detail": "File too large"})
		return
	}

	f, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Could not process image"})
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Could not process image"})
		return
	}

	rid := c.GetString(requestIDKey)
	log.Printf("NEW detect rid=%s file=%q type=%s size=%d", rid, file.Filename, ct, len(data))

	out, err := s.eng.Pipeline.DetectBytes(c.Request.Context(), data)
	switch {
	case errors.Is(err, plate.ErrInvalidImage):
		log.Printf("DETECT rid=%s invalid image: %v", rid, err)
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Could not process image"})
		return
	case err != nil:
		log.Printf("DETECT rid=%s failed: %v", rid, err)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Detection failed"})
		return
	}

	if out.Found() {
		log.Printf("DETECT rid=%s plate=%s conf=%.2f", rid, out.Result.PlateNumber, out.Result.Confidence)
	} else {
		log.Printf("DETECT rid=%s %s", rid, out.Message)
	}
	c.JSON(http.StatusOK, out)
}
