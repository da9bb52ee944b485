package worker

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Lee-Hyeong-Jin/multimodal-preprocessing-api/internal/apperr"
)

// PageMessage is published once per extracted PDF page.
type PageMessage struct {
	OriginPath       string `json:"origin_path"`
	PageNumber       int    `json:"page_number"`
	TotalPage        int    `json:"total_page"`
	PageText         string `json:"page_text"`
	PageImagePath    string `json:"page_image_path"`
	HasImage         bool   `json:"has_image"`
	HasTable         bool   `json:"has_table"`
	ImageDescription string `json:"image_description"`

	// DedupKey, when set by the producer, makes the origin id stable across
	// redeliveries.
	DedupKey string `json:"dedup_key,omitempty"`
}

func (m PageMessage) Validate() error {
	if strings.TrimSpace(m.OriginPath) == "" {
		return fmt.Errorf("%w: origin_path is required", apperr.ErrInvalidInput)
	}
	if m.PageNumber < 1 {
		return fmt.Errorf("%w: page_number must be >= 1", apperr.ErrInvalidInput)
	}
	if m.TotalPage < m.PageNumber {
		return fmt.Errorf("%w: total_page %d is less than page_number %d", apperr.ErrInvalidInput, m.TotalPage, m.PageNumber)
	}
	return nil
}

// OriginFileName is the last element of OriginPath.
func (m PageMessage) OriginFileName() string {
	if m.OriginPath == "" {
		return ""
	}
	return filepath.Base(m.OriginPath)
}

// DrawingMessage is published once per engineering drawing.
type DrawingMessage struct {
	DrawingID    string          `json:"drawing_id"`
	PageText     string          `json:"page_text"`
	PageSummary  string          `json:"page_summary"`
	ImagePath    string          `json:"image_path"`
	ImageType    string          `json:"image_type"`
	ImageURL     string          `json:"image_url"`
	InfoProject  string          `json:"info_project"`
	InfoTitle    string          `json:"info_title"`
	InfoDwgNo    string          `json:"info_dwg_no"`
	InfoRev      string          `json:"info_rev"`
	InfoScale    string          `json:"info_scale"`
	Parts        json.RawMessage `json:"parts,omitempty"`
	DwgFilename  string          `json:"_dwg_filename"`
	DwgFilepath  string          `json:"_dwg_filepath"`
	SourceDrawID string          `json:"_drawing_id"`
	NumImages    int             `json:"_num_images"`

	DedupKey string `json:"dedup_key,omitempty"`
}

func (m DrawingMessage) Validate() error {
	if strings.TrimSpace(m.DrawingID) == "" && strings.TrimSpace(m.SourceDrawID) == "" {
		return fmt.Errorf("%w: drawing_id is required", apperr.ErrInvalidInput)
	}
	if strings.TrimSpace(m.PageText) == "" && strings.TrimSpace(m.PageSummary) == "" {
		return fmt.Errorf("%w: page_text or page_summary is required", apperr.ErrInvalidInput)
	}
	if len(m.Parts) > 0 && !json.Valid(m.Parts) {
		return fmt.Errorf("%w: parts is not valid JSON", apperr.ErrInvalidInput)
	}
	return nil
}

// decode unmarshals a delivery body. Any failure is ErrMalformedMessage.
func decode(body []byte, v interface{}) error {
	if len(body) == 0 {
		return fmt.Errorf("%w: empty body", apperr.ErrMalformedMessage)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrMalformedMessage, err)
	}
	return nil
}
