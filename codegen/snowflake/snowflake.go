// Package snowflake 生成按时间递增的 int64 主键，供键值存储在多进程间分配主键。
//
// 布局：41 位毫秒时间戳 | 5 位数据中心 | 5 位节点 | 12 位序列。
package snowflake

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// 2023-01-01 00:00:00 UTC
	epoch int64 = 1672531200000

	workerBits     = 5
	datacenterBits = 5
	sequenceBits   = 12

	MaxWorkerID     = -1 ^ (-1 << workerBits)
	MaxDatacenterID = -1 ^ (-1 << datacenterBits)
	maxSequence     = -1 ^ (-1 << sequenceBits)

	workerShift     = sequenceBits
	datacenterShift = sequenceBits + workerBits
	timestampShift  = sequenceBits + workerBits + datacenterBits
)

var ErrClockMovedBackwards = errors.New("snowflake: clock moved backwards")

// Generator 单个节点的生成器，并发安全
type Generator struct {
	mu           sync.Mutex
	datacenterID int64
	workerID     int64
	sequence     int64
	lastMillis   int64
	now          func() int64
}

func NewGenerator(datacenterID, workerID int64) (*Generator, error) {
	if datacenterID < 0 || datacenterID > MaxDatacenterID {
		return nil, fmt.Errorf("snowflake: datacenter id %d out of range [0, %d]", datacenterID, MaxDatacenterID)
	}
	if workerID < 0 || workerID > MaxWorkerID {
		return nil, fmt.Errorf("snowflake: worker id %d out of range [0, %d]", workerID, MaxWorkerID)
	}
	return &Generator{
		datacenterID: datacenterID,
		workerID:     workerID,
		lastMillis:   -1,
		now:          func() int64 { return time.Now().UnixMilli() },
	}, nil
}

// NextID 同一毫秒内序列耗尽时自旋到下一毫秒
func (g *Generator) NextID() (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	ms := g.now()
	if ms < g.lastMillis {
		return 0, ErrClockMovedBackwards
	}
	if ms == g.lastMillis {
		g.sequence = (g.sequence + 1) & maxSequence
		if g.sequence == 0 {
			for ms <= g.lastMillis {
				ms = g.now()
			}
		}
	} else {
		g.sequence = 0
	}
	g.lastMillis = ms

	return (ms-epoch)<<timestampShift |
		g.datacenterID<<datacenterShift |
		g.workerID<<workerShift |
		g.sequence, nil
}

// Parts ID 的组成部分
type Parts struct {
	Time         time.Time
	DatacenterID int64
	WorkerID     int64
	Sequence     int64
}

func Parse(id int64) Parts {
	return Parts{
		Time:         time.UnixMilli((id >> timestampShift) + epoch),
		DatacenterID: (id >> datacenterShift) & MaxDatacenterID,
		WorkerID:     (id >> workerShift) & MaxWorkerID,
		Sequence:     id & maxSequence,
	}
}

var defaultGenerator atomic.Pointer[Generator]

func init() {
	g, _ := NewGenerator(1, 1)
	defaultGenerator.Store(g)
}

// NextID 使用进程级默认生成器
func NextID() (int64, error) {
	return defaultGenerator.Load().NextID()
}

// SetDefault 按配置替换默认生成器
func SetDefault(datacenterID, workerID int64) error {
	g, err := NewGenerator(datacenterID, workerID)
	if err != nil {
		return err
	}
	defaultGenerator.Store(g)
	return nil
}
