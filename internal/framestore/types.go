// Package framestore archives pre-rendered animation frames in a SQLite
// database so they can be served without rendering.
package framestore

import (
	"strconv"
)

// Metadata describes an archived animation.
type Metadata struct {
	Name        string  `json:"name"`                  // Human-readable identifier
	Format      string  `json:"format"`                // Frame encoding (png, jpeg)
	Description string  `json:"description,omitempty"` // Free text
	Config      string  `json:"config,omitempty"`      // Effect options as JSON
	Width       int     `json:"width"`                 // Frame width in device pixels
	Height      int     `json:"height"`                // Frame height in device pixels
	DPR         float64 `json:"dpr"`                   // Device pixel ratio the frames were rendered at
	FPS         float64 `json:"fps"`                   // Playback rate
	FrameCount  int     `json:"frame_count"`           // Number of frames in one loop
}

// ToMap converts Metadata to a map for database insertion.
func (m Metadata) ToMap() map[string]string {
	result := make(map[string]string)

	if m.Name != "" {
		result["name"] = m.Name
	}
	if m.Format != "" {
		result["format"] = m.Format
	}
	if m.Description != "" {
		result["description"] = m.Description
	}
	if m.Config != "" {
		result["config"] = m.Config
	}
	if m.Width > 0 {
		result["width"] = strconv.Itoa(m.Width)
	}
	if m.Height > 0 {
		result["height"] = strconv.Itoa(m.Height)
	}
	if m.DPR > 0 {
		result["dpr"] = strconv.FormatFloat(m.DPR, 'g', -1, 64)
	}
	if m.FPS > 0 {
		result["fps"] = strconv.FormatFloat(m.FPS, 'g', -1, 64)
	}
	if m.FrameCount > 0 {
		result["frame_count"] = strconv.Itoa(m.FrameCount)
	}

	return result
}

// metadataFromMap is the inverse of ToMap. Malformed numbers are ignored.
func metadataFromMap(values map[string]string) Metadata {
	meta := Metadata{
		Name:        values["name"],
		Format:      values["format"],
		Description: values["description"],
		Config:      values["config"],
	}
	if v, err := strconv.Atoi(values["width"]); err == nil {
		meta.Width = v
	}
	if v, err := strconv.Atoi(values["height"]); err == nil {
		meta.Height = v
	}
	if v, err := strconv.ParseFloat(values["dpr"], 64); err == nil {
		meta.DPR = v
	}
	if v, err := strconv.ParseFloat(values["fps"], 64); err == nil {
		meta.FPS = v
	}
	if v, err := strconv.Atoi(values["frame_count"]); err == nil {
		meta.FrameCount = v
	}
	return meta
}
