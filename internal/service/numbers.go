package service

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
)

// NumberGenerator issues human-facing document numbers such as
// "INV-1A2B3C4D5E".
type NumberGenerator func(prefix string) string

// NewNumberGenerator returns a generator backed by a snowflake node. Each
// API instance must run with a distinct node id (0-1023).
func NewNumberGenerator(nodeID int64) (NumberGenerator, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("snowflake node %d: %w", nodeID, err)
	}
	return func(prefix string) string {
		return prefix + "-" + strings.ToUpper(node.Generate().Base36())
	}, nil
}
