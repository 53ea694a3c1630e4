package sfu

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/rs/zerolog/log"
)

// Hub fans every publisher's tracks out to its subscribers. Feeds are keyed
// by the publishing session's id, so a name reused after a leave never
// reaches the previous holder's subscribers. Subscribers may attach before
// the publisher's tracks arrive; they are wired to each relay as it starts.
type Hub struct {
	mu    sync.Mutex
	feeds map[string]*feed
}

type feed struct {
	relays   map[string]*Relay               // media kind -> relay
	subs     map[string]map[string]RTPWriter // subscriber id -> media kind -> track
	keyframe func()
}

func (f *feed) empty() bool {
	return len(f.relays) == 0 && len(f.subs) == 0 && f.keyframe == nil
}

func NewHub() *Hub {
	return &Hub{feeds: make(map[string]*feed)}
}

func (h *Hub) feedLocked(source string) *feed {
	f, ok := h.feeds[source]
	if !ok {
		f = &feed{
			relays: make(map[string]*Relay),
			subs:   make(map[string]map[string]RTPWriter),
		}
		h.feeds[source] = f
	}
	return f
}

func (h *Hub) dropIfEmptyLocked(source string, f *feed) {
	if f.empty() {
		delete(h.feeds, source)
	}
}

// Publish starts relaying src as the source's track of the given kind,
// replacing a previous relay of that kind.
func (h *Hub) Publish(ctx context.Context, source string, kind string, src RTPSource) *Relay {
	logger := log.With().
		Str("module", "sfu").
		Str("source", source).
		Str("kind", kind).
		Logger()

	relayCtx, cancel := context.WithCancel(ctx)
	relay := NewRelay(src, kind, cancel)

	h.mu.Lock()
	f := h.feedLocked(source)
	if old, ok := f.relays[kind]; ok {
		logger.Info().Msg("replacing existing relay")
		old.stop()
	}
	f.relays[kind] = relay
	for id, tracks := range f.subs {
		if w, ok := tracks[kind]; ok {
			relay.AddOutTrack(id, w)
		}
	}
	keyframe := f.keyframe
	h.mu.Unlock()

	logger.Info().Msg("starting relay loop")
	go relay.loop(relayCtx, &logger)

	if kind == "video" && keyframe != nil {
		keyframe()
	}
	return relay
}

// SetKeyframeRequester installs the function that asks the source's encoder
// for a keyframe.
func (h *Hub) SetKeyframeRequester(source string, fn func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	f := h.feedLocked(source)
	f.keyframe = fn
	h.dropIfEmptyLocked(source, f)
}

// Unpublish stops every relay of source. Subscribers stay attached and are
// wired to the relays of a later Publish from the same session.
func (h *Hub) Unpublish(source string) {
	h.mu.Lock()
	f, ok := h.feeds[source]
	if !ok {
		h.mu.Unlock()
		return
	}
	relays := slices.Collect(maps.Values(f.relays))
	clear(f.relays)
	f.keyframe = nil
	h.dropIfEmptyLocked(source, f)
	h.mu.Unlock()

	for _, r := range relays {
		r.stop()
	}
	log.Info().Str("module", "sfu").Str("source", source).Int("relays", len(relays)).Msg("unpublished")
}

// Subscribe attaches tracks, keyed by media kind, to the source's feed.
func (h *Hub) Subscribe(source string, id string, tracks map[string]RTPWriter) {
	h.mu.Lock()
	f := h.feedLocked(source)
	f.subs[id] = tracks
	video := false
	for kind, w := range tracks {
		if r, ok := f.relays[kind]; ok {
			r.AddOutTrack(id, w)
			video = video || kind == "video"
		}
	}
	keyframe := f.keyframe
	h.mu.Unlock()

	log.Debug().Str("module", "sfu").Str("source", source).Str("sub", id).Msg("subscribed")
	if video && keyframe != nil {
		keyframe()
	}
}

func (h *Hub) Unsubscribe(source string, id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	f, ok := h.feeds[source]
	if !ok {
		return
	}
	delete(f.subs, id)
	for _, r := range f.relays {
		r.RemoveOutTrack(id)
	}
	h.dropIfEmptyLocked(source, f)
}

// RequestKeyframe forwards a subscriber's picture loss report to source.
func (h *Hub) RequestKeyframe(source string) {
	h.mu.Lock()
	var keyframe func()
	if f, ok := h.feeds[source]; ok {
		keyframe = f.keyframe
	}
	h.mu.Unlock()
	if keyframe != nil {
		keyframe()
	}
}

// Subscribers returns the number of subscribers attached to source.
func (h *Hub) Subscribers(source string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if f, ok := h.feeds[source]; ok {
		return len(f.subs)
	}
	return 0
}

// Relay returns the source's running relay of kind.
func (h *Hub) Relay(source string, kind string) (*Relay, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	f, ok := h.feeds[source]
	if !ok {
		return nil, false
	}
	r, ok := f.relays[kind]
	return r, ok
}
