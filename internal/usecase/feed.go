package usecase

import (
	"strings"
	"sync"

	"perfaudit/internal/domain"
	"perfaudit/internal/port"
)

// Feed carries ordered presentation events from the pipeline to a single
// renderer. Publishing blocks while the buffer is full, so Run must be
// draining the feed whenever a pass is active.
type Feed struct {
	mu      sync.Mutex
	ch      chan domain.FeedEvent
	seq     uint64
	replies int
	closed  bool
}

func NewFeed(buffer int) *Feed {
	if buffer <= 0 {
		buffer = 64
	}
	return &Feed{ch: make(chan domain.FeedEvent, buffer)}
}

// Run renders events in arrival order until Close.
func (f *Feed) Run(r port.FeedRenderer) {
	for ev := range f.ch {
		r.Render(ev)
	}
}

// Close stops accepting events; Run returns once the buffer drains.
func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.ch)
	}
}

func (f *Feed) publish(ev domain.FeedEvent) {
	if f == nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.seq++
	ev.Seq = f.seq
	f.ch <- ev
}

// Placeholder shows the "processing" indicator for pass.
func (f *Feed) Placeholder(pass domain.AuditKind) {
	f.publish(domain.FeedEvent{Kind: domain.EventPlaceholder, Pass: pass, Text: "Processing"})
}

// PlaceholderDone removes the indicator for pass.
func (f *Feed) PlaceholderDone(pass domain.AuditKind) {
	f.publish(domain.FeedEvent{Kind: domain.EventPlaceholderDone, Pass: pass})
}

// Prompt echoes the user-side message that starts a reply.
func (f *Feed) Prompt(pass domain.AuditKind, programme, text string) {
	f.publish(domain.FeedEvent{Kind: domain.EventPrompt, Pass: pass, Programme: programme, Text: text})
}

// NewReply opens an output wrapper for one programme of one pass.
func (f *Feed) NewReply(pass domain.AuditKind, programme string) *Reply {
	id := 0
	if f != nil {
		f.mu.Lock()
		f.replies++
		id = f.replies
		f.mu.Unlock()
	}
	return &Reply{feed: f, id: id, pass: pass, programme: programme}
}

// Reply accumulates a streamed answer as an ordered list of blocks. Each
// continuation opens a new block so earlier output is never overwritten.
type Reply struct {
	feed      *Feed
	id        int
	pass      domain.AuditKind
	programme string

	mu     sync.Mutex
	blocks []*Block
}

// NewBlock appends an empty block.
func (r *Reply) NewBlock() *Block {
	r.mu.Lock()
	b := &Block{reply: r, index: len(r.blocks)}
	r.blocks = append(r.blocks, b)
	r.mu.Unlock()

	r.feed.publish(r.event(domain.EventBlockOpen, b.index, ""))
	return b
}

// Blocks returns the block handles in order.
func (r *Reply) Blocks() []*Block {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*Block(nil), r.blocks...)
}

// Texts returns each block's current text.
func (r *Reply) Texts() []string {
	blocks := r.Blocks()
	out := make([]string, len(blocks))
	for i, b := range blocks {
		out[i] = b.Text()
	}
	return out
}

// Text is the concatenation of all blocks.
func (r *Reply) Text() string {
	return strings.Join(r.Texts(), "")
}

func (r *Reply) event(kind domain.EventKind, block int, text string) domain.FeedEvent {
	return domain.FeedEvent{
		Kind:      kind,
		Pass:      r.pass,
		Programme: r.programme,
		Reply:     r.id,
		Block:     block,
		Text:      text,
	}
}

// Block is one output block. Updates replace the whole text.
type Block struct {
	reply *Reply
	index int

	mu     sync.Mutex
	text   string
	closed bool
}

// Set replaces the block text with the cumulative content.
func (b *Block) Set(text string) {
	b.mu.Lock()
	b.text = text
	b.mu.Unlock()
	b.reply.feed.publish(b.reply.event(domain.EventBlockUpdate, b.index, text))
}

// Append adds a marker or suffix to the current text.
func (b *Block) Append(s string) {
	b.mu.Lock()
	b.text += s
	text := b.text
	b.mu.Unlock()
	b.reply.feed.publish(b.reply.event(domain.EventBlockUpdate, b.index, text))
}

// Close marks the block final.
func (b *Block) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	text := b.text
	b.mu.Unlock()
	b.reply.feed.publish(b.reply.event(domain.EventBlockClose, b.index, text))
}

func (b *Block) Text() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.text
}

func (b *Block) Index() int {
	return b.index
}
