// Package idgen issues time-ordered unique identifiers for receipts and parent orders.
package idgen

import (
	"fmt"

	"github.com/bwmarrin/snowflake"
)

const (
	receiptPrefix = "rcpt_"
	parentPrefix  = "PO-"
)

// Generator wraps a snowflake node. Each process must run with a distinct node id.
type Generator struct {
	node *snowflake.Node
}

func New(nodeID int64) (*Generator, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("init snowflake node %d: %w", nodeID, err)
	}
	return &Generator{node: node}, nil
}

// Receipt returns a gateway receipt code, well under the gateway's 40 character limit.
func (g *Generator) Receipt() string {
	return receiptPrefix + g.node.Generate().String()
}

// ParentOrderID returns the opaque identifier of a multi-vendor checkout.
func (g *Generator) ParentOrderID() string {
	return parentPrefix + g.node.Generate().String()
}
