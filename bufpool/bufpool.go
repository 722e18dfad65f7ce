// Package bufpool provides pooled byte buffers for message formatting on
// the logging hot path.
package bufpool

import (
	"bytes"
	"sync"
)

type Pool struct {
	p *sync.Pool
}

func New() *Pool {
	syncPool := sync.Pool{}
	syncPool.New = func() interface{} {
		return &Buffer{
			pool: &syncPool,
		}
	}

	return &Pool{
		p: &syncPool,
	}
}

func (p *Pool) Get() *Buffer {
	return p.p.Get().(*Buffer)
}

// Buffer is a bytes.Buffer returned to its pool on Close.
type Buffer struct {
	bytes.Buffer
	pool *sync.Pool
}

func (b *Buffer) Close() error {
	b.Reset()
	b.pool.Put(b)
	return nil
}
