package executor

import (
	"sync"
	"time"

	"swapengine/internal/strategy"
)

type EventType string

const (
	EventApprovalStart    EventType = "approval_start"
	EventApprovalComplete EventType = "approval_complete"
	EventSwapStart        EventType = "swap_start"
	EventSwapComplete     EventType = "swap_complete"
	EventError            EventType = "error"
)

// Event 执行过程中的通知，按类型填充对应字段
type Event struct {
	Type       EventType
	StrategyID string
	Strategy   string
	Request    *strategy.SwapRequest
	Approval   *strategy.ApprovalEvent
	Result     *strategy.SwapResult
	Err        error
	Time       time.Time
}

type Handler func(Event)

type registeredHandler struct {
	id int
	h  Handler
}

// Emitter 并发安全的事件分发，支持回调与 channel 两种订阅方式
type Emitter struct {
	mu       sync.RWMutex
	nextID   int
	handlers map[EventType][]registeredHandler
	channels map[int]chan Event
}

func NewEmitter() *Emitter {
	return &Emitter{
		handlers: make(map[EventType][]registeredHandler),
		channels: make(map[int]chan Event),
	}
}

// On 注册回调，同一事件的回调按注册顺序执行；返回取消函数
func (e *Emitter) On(t EventType, h Handler) func() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.nextID++
	id := e.nextID
	e.handlers[t] = append(e.handlers[t], registeredHandler{id: id, h: h})

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		list := e.handlers[t]
		for i, rh := range list {
			if rh.id == id {
				e.handlers[t] = append(list[:i:i], list[i+1:]...)
				return
			}
		}
	}
}

// Subscribe 接收全部事件；缓冲区满时丢弃事件，不阻塞兑换流程
func (e *Emitter) Subscribe(buffer int) (<-chan Event, func()) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.nextID++
	id := e.nextID
	ch := make(chan Event, buffer)
	e.channels[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			e.mu.Lock()
			defer e.mu.Unlock()
			delete(e.channels, id)
			close(ch)
		})
	}
}

func (e *Emitter) Emit(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}

	e.mu.RLock()
	handlers := make([]Handler, 0, len(e.handlers[ev.Type]))
	for _, rh := range e.handlers[ev.Type] {
		handlers = append(handlers, rh.h)
	}
	for _, ch := range e.channels {
		select {
		case ch <- ev:
		default:
		}
	}
	e.mu.RUnlock()

	for _, h := range handlers {
		h(ev)
	}
}
