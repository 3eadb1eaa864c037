// Package matchclient implements the caller side of the clothing-
// similarity service's HTTP contract.
package matchclient

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
	"net/url"
	"strconv"
	"time"
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

// IdentifyMatch is one {suspect_id, similarity, confidence} result.
type IdentifyMatch struct {
	SuspectID  string  `json:"suspect_id"`
	Similarity float64 `json:"similarity"`
	Confidence float64 `json:"confidence"`
}

type identifyResponse struct {
	Matches      []IdentifyMatch `json:"matches"`
	MatchesFound int             `json:"matches_found"`
}

// Identify uploads a crop image and returns every candidate match the
// matcher reports, unfiltered; the Matching Batcher applies the
// best-match/threshold selection.
func (c *Client) Identify(ctx context.Context, img image.Image, threshold float64) ([]IdentifyMatch, error) {
	body, contentType, err := encodeMultipart(img, "threshold", strconv.FormatFloat(threshold, 'f', -1, 64))
	if err != nil {
		return nil, fmt.Errorf("encode identify request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/identify_person", body)
	if err != nil {
		return nil, fmt.Errorf("build identify request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("identify request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("upstream_5xx: identify returned %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("identify returned %d", resp.StatusCode)
	}

	var parsed identifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode identify response: %w", err)
	}
	return parsed.Matches, nil
}

type registerResponse struct {
	Status          string `json:"status"`
	FeatureDimension int   `json:"feature_dimension"`
}

// Register upserts a target's reference image under targetID. Calling
// it twice with a different image for the same id replaces the stored
// feature vector.
func (c *Client) Register(ctx context.Context, targetID string, img image.Image) error {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	if err := writer.WriteField("person_id", targetID); err != nil {
		return err
	}
	part, err := writer.CreateFormFile("file", "target.jpg")
	if err != nil {
		return err
	}
	if err := jpeg.Encode(part, img, &jpeg.Options{Quality: 90}); err != nil {
		return err
	}
	if err := writer.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/register_person", &buf)
	if err != nil {
		return fmt.Errorf("build register request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("register request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("register returned %d", resp.StatusCode)
	}

	var parsed registerResponse
	_ = json.NewDecoder(resp.Body).Decode(&parsed)
	return nil
}

type RegisteredPerson struct {
	PersonID        string `json:"person_id"`
	FeatureDimension int   `json:"feature_dimension"`
}

// ListRegistered returns every currently-registered target.
func (c *Client) ListRegistered(ctx context.Context) ([]RegisteredPerson, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/registered_persons", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list registered request: %w", err)
	}
	defer resp.Body.Close()

	var out struct {
		Persons []RegisteredPerson `json:"persons"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode list registered response: %w", err)
	}
	return out.Persons, nil
}

// Delete removes a registered target.
func (c *Client) Delete(ctx context.Context, targetID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.BaseURL+"/person/"+url.PathEscape(targetID), nil)
	if err != nil {
		return err
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("delete request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("delete returned %d", resp.StatusCode)
	}
	return nil
}

func encodeMultipart(img image.Image, field, value string) (io.Reader, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", "crop.jpg")
	if err != nil {
		return nil, "", err
	}
	if err := jpeg.Encode(part, img, &jpeg.Options{Quality: 90}); err != nil {
		return nil, "", err
	}
	if err := writer.WriteField(field, value); err != nil {
		return nil, "", err
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return &buf, writer.FormDataContentType(), nil
}
