package matchersim

import (
	"errors"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
)

type Server struct {
	embedder *Embedder
	store    *Store
}

func NewServer(embedder *Embedder, store *Store) *Server {
	return &Server{embedder: embedder, store: store}
}

func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.POST("/register_person", s.register)
	r.POST("/identify_person", s.identify)
	r.GET("/registered_persons", s.list)
	r.DELETE("/person/:id", s.delete)
	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	return r
}

func decodeUploadedImage(c *gin.Context) (image.Image, error) {
	file, _, err := c.Request.FormFile("file")
	if err != nil {
		return nil, err
	}
	defer file.Close()
	img, _, err := image.Decode(file)
	return img, err
}

func (s *Server) register(c *gin.Context) {
	targetID := c.PostForm("person_id")
	if targetID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": "missing person_id"})
		return
	}
	img, err := decodeUploadedImage(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": "missing or undecodable file"})
		return
	}

	feature, err := s.embedder.Extract(img)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "error": err.Error()})
		return
	}
	if err := s.store.Upsert(c.Request.Context(), targetID, feature); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok", "feature_dimension": embedDim})
}

func (s *Server) identify(c *gin.Context) {
	img, err := decodeUploadedImage(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": "missing or undecodable file"})
		return
	}

	threshold := 0.6
	if v := c.PostForm("threshold"); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			threshold = parsed
		}
	}

	feature, err := s.embedder.Extract(img)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "error": err.Error()})
		return
	}

	candidates, err := s.store.Search(c.Request.Context(), feature, threshold, 10)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "error": err.Error()})
		return
	}

	matches := make([]gin.H, 0, len(candidates))
	for _, cand := range candidates {
		matches = append(matches, gin.H{
			"suspect_id": cand.TargetID,
			"similarity": cand.Similarity,
			"confidence": cand.Similarity,
		})
	}

	c.JSON(http.StatusOK, gin.H{"matches": matches, "matches_found": len(matches)})
}

func (s *Server) list(c *gin.Context) {
	ids, err := s.store.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "error": err.Error()})
		return
	}
	persons := make([]gin.H, 0, len(ids))
	for _, id := range ids {
		persons = append(persons, gin.H{"person_id": id, "feature_dimension": embedDim})
	}
	c.JSON(http.StatusOK, gin.H{"persons": persons})
}

func (s *Server) delete(c *gin.Context) {
	id := c.Param("id")
	err := s.store.Delete(c.Request.Context(), id)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		c.JSON(http.StatusNotFound, gin.H{"status": "error", "error": "target not found"})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "error": err.Error()})
	default:
		c.Status(http.StatusNoContent)
	}
}
