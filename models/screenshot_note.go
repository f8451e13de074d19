package models

import "time"

// ScreenshotNote One note panel attached to a screenshot
type ScreenshotNote struct {
	ID             string    `json:"id" gorm:"primaryKey"`
	HandNoteID     string    `json:"hand_note_id" gorm:"index"`
	ScreenshotURL  string    `json:"screenshot_url" gorm:"index;not null"`
	Note           string    `json:"note"`
	ScreenshotType string    `json:"screenshot_type" gorm:"default:hand"`
	DisplayOrder   int       `json:"display_order"`
	PanelX         *int      `json:"panel_x"`
	PanelY         *int      `json:"panel_y"`
	PanelWidth     *int      `json:"panel_width"`
	PanelHeight    *int      `json:"panel_height"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (ScreenshotNote) TableName() string {
	return "screenshot_notes"
}

// LegacyScreenshotNote The older single combined note per screenshot
type LegacyScreenshotNote struct {
	ID            uint      `json:"id" gorm:"primaryKey"`
	ScreenshotURL string    `json:"screenshot_url" gorm:"uniqueIndex"`
	Note          string    `json:"note"`
	Migrated      bool      `json:"migrated"`
	CreatedAt     time.Time `json:"created_at"`
}

func (LegacyScreenshotNote) TableName() string {
	return "legacy_screenshot_notes"
}
