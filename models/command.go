package models

import (
	"encoding/json"
	"fmt"
	"time"
)

type CommandType string

const (
	CmdScrapeNow  CommandType = "scrape_now"
	CmdScrapeSite CommandType = "scrape_site"
	CmdPause      CommandType = "pause"
	CmdResume     CommandType = "resume"
)

type Command struct {
	ID          int64           `json:"id" db:"id"`
	Command     CommandType     `json:"command" db:"command"`
	Params      json.RawMessage `json:"params" db:"params"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	ProcessedAt *time.Time      `json:"processed_at" db:"processed_at"`
}

type CommandParams struct {
	Site string `json:"site,omitempty"`
}

// ParseParams decodes the optional JSON params of a queued command.
func (c *Command) ParseParams() (CommandParams, error) {
	var params CommandParams
	if len(c.Params) == 0 || string(c.Params) == "null" {
		return params, nil
	}
	if err := json.Unmarshal(c.Params, &params); err != nil {
		return params, fmt.Errorf("command %d params: %w", c.ID, err)
	}
	return params, nil
}
