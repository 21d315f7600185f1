// Package ordernum generates human-readable order numbers.
package ordernum

import (
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
)

const Prefix = "KR"

// Generator yields numbers of the form KR<year><snowflake id>. The snowflake
// part is millisecond time plus a per-node sequence, so numbers issued by one
// process never repeat. Distinct processes need distinct node ids.
type Generator struct {
	node *snowflake.Node
	now  func() time.Time
}

func NewGenerator(nodeID int64) (*Generator, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("create snowflake node: %w", err)
	}
	return &Generator{node: node, now: time.Now}, nil
}

func (g *Generator) Next() string {
	return fmt.Sprintf("%s%d%s", Prefix, g.now().Year(), g.node.Generate().String())
}
