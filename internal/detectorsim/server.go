package detectorsim

import (
	"image"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

type Server struct {
	detector *Detector
}

func NewServer(detector *Detector) *Server {
	return &Server{detector: detector}
}

func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.POST("/detect", s.detect)
	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	return r
}

type detectionJSON struct {
	ClassName  string  `json:"class_name"`
	Confidence float64 `json:"confidence"`
	BBox       struct {
		X1 float64 `json:"x1"`
		Y1 float64 `json:"y1"`
		X2 float64 `json:"x2"`
		Y2 float64 `json:"y2"`
	} `json:"bbox"`
}

// detect implements the external detection service's contract:
// multipart file + confidence + show_all_objects in, a JSON results
// envelope back.
func (s *Server) detect(c *gin.Context) {
	file, _, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": "missing file"})
		return
	}
	defer file.Close()

	confidence := 0.25
	if v := c.PostForm("confidence"); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			confidence = parsed
		}
	}

	img, _, err := image.Decode(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": "undecodable image"})
		return
	}

	detections, err := s.detector.Detect(img, confidence)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "error": err.Error()})
		return
	}

	all := make([]detectionJSON, 0, len(detections))
	for _, d := range detections {
		var dj detectionJSON
		dj.ClassName = d.Class
		dj.Confidence = d.DetectorConfidence
		dj.BBox.X1 = d.BBox.X1
		dj.BBox.Y1 = d.BBox.Y1
		dj.BBox.X2 = d.BBox.X2
		dj.BBox.Y2 = d.BBox.Y2
		all = append(all, dj)
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"results": gin.H{
			"all_detections": all,
			"person_count":   len(all),
		},
	})
}
