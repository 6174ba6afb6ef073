package utils

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
)

const (
	receiptPrefix     = "RCP-"
	transactionPrefix = "TXN-"
)

// ReferenceGenerator issues receipt numbers and accounting references that
// are unique per node and sortable by issue time.
type ReferenceGenerator struct {
	node *snowflake.Node
}

func NewReferenceGenerator(nodeID int64) (*ReferenceGenerator, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("snowflake node %d: %w", nodeID, err)
	}
	return &ReferenceGenerator{node: node}, nil
}

func (g *ReferenceGenerator) Receipt() string {
	return receiptPrefix + g.next()
}

func (g *ReferenceGenerator) Transaction() string {
	return transactionPrefix + g.next()
}

func (g *ReferenceGenerator) next() string {
	return strings.ToUpper(g.node.Generate().Base36())
}
