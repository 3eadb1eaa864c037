// Package detectclient implements the caller side of the person-detection
// service's HTTP contract.
package detectclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/your-org/tracepipe/internal/models"
)

type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

type detectResponse struct {
	Status  string `json:"status"`
	Results struct {
		AllDetections []struct {
			ClassName  string  `json:"class_name"`
			Confidence float64 `json:"confidence"`
			BBox       struct {
				X1 float64 `json:"x1"`
				Y1 float64 `json:"y1"`
				X2 float64 `json:"x2"`
				Y2 float64 `json:"y2"`
			} `json:"bbox"`
		} `json:"all_detections"`
		PersonCount int `json:"person_count"`
	} `json:"results"`
}

// Detect uploads one frame as a JPEG multipart form, passing confidence
// as the service-side threshold, and returns only the "person" class
// detections from the response; it applies no confidence filter itself.
func (c *Client) Detect(ctx context.Context, img image.Image, confidence float64) ([]models.Detection, error) {
	body, contentType, err := encodeMultipartFrame(img, confidence)
	if err != nil {
		return nil, fmt.Errorf("encode detect request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/detect", body)
	if err != nil {
		return nil, fmt.Errorf("build detect request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("detect request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("upstream_5xx: detect returned %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("detect returned %d", resp.StatusCode)
	}

	var parsed detectResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode detect response: %w", err)
	}

	detections := make([]models.Detection, 0, len(parsed.Results.AllDetections))
	for _, d := range parsed.Results.AllDetections {
		if d.ClassName != "person" {
			continue
		}
		detections = append(detections, models.Detection{
			BBox: models.BBox{
				X1: d.BBox.X1, Y1: d.BBox.Y1, X2: d.BBox.X2, Y2: d.BBox.Y2,
			},
			DetectorConfidence: d.Confidence,
			Class:              "person",
		})
	}
	return detections, nil
}

func encodeMultipartFrame(img image.Image, confidence float64) (io.Reader, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", "frame.jpg")
	if err != nil {
		return nil, "", err
	}
	if err := jpeg.Encode(part, img, &jpeg.Options{Quality: 90}); err != nil {
		return nil, "", err
	}

	if err := writer.WriteField("confidence", strconv.FormatFloat(confidence, 'f', -1, 64)); err != nil {
		return nil, "", err
	}
	if err := writer.WriteField("show_all_objects", "false"); err != nil {
		return nil, "", err
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return &buf, writer.FormDataContentType(), nil
}
