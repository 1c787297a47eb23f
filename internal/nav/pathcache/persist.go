package pathcache

import (
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"colonynav.ai/internal/nav/geo"
	"colonynav.ai/internal/persistence/segments"
)

const payloadVersion = 1

type payload struct {
	V       int         `json:"v"`
	Entries []wireEntry `json:"entries"`
}

type wireEntry struct {
	K string `json:"k"`
	P string `json:"p"`
	T uint64 `json:"t"`
}

// Attach queues loads of every configured slot. Flush stays a no-op until all
// of them have been delivered so a half-loaded cache never overwrites slots.
func (c *Cache) Attach(p *segments.Pager) {
	c.pending = len(c.cfg.Slots)
	for _, slot := range c.cfg.Slots {
		p.RequestLoad(slot, func(doc json.RawMessage) {
			c.merge(slot, doc)
			c.pending--
		})
	}
}

// Loaded reports whether every attached slot has been delivered.
func (c *Cache) Loaded() bool { return c.pending <= 0 }

func (c *Cache) merge(slot int, doc json.RawMessage) {
	if doc == nil {
		return
	}
	var pl payload
	if err := json.Unmarshal(doc, &pl); err != nil {
		c.log.Warn("undecodable cache slot", zap.Int("slot", slot), zap.Error(err))
		return
	}
	if pl.V != payloadVersion {
		c.log.Warn("cache slot version", zap.Int("slot", slot), zap.Int("version", pl.V))
		return
	}
	for _, we := range pl.Entries {
		if len(c.entries) >= c.cfg.MaxPaths {
			break
		}
		k, ok := parseKey(we.K)
		if !ok || k.Origin.Region == k.Dest.Region {
			continue
		}
		if _, exists := c.entries[k]; exists {
			continue
		}
		path, ok := geo.DecodePath(we.P)
		if !ok || len(path) == 0 {
			continue
		}
		c.entries[k] = &entry{path: path, end: geo.Walk(k.Origin, path), lastUsed: we.T}
		c.stats.Loaded++
	}
}

func parseKey(s string) (Key, bool) {
	from, to, ok := strings.Cut(s, ">")
	if !ok {
		return Key{}, false
	}
	o, err := geo.ParseTile(from)
	if err != nil {
		return Key{}, false
	}
	d, err := geo.ParseTile(to)
	if err != nil {
		return Key{}, false
	}
	return Key{Origin: o, Dest: d}, true
}

// Flush queues one save per configured slot when the cache changed since the
// last flush. Entries are spread over the slots in key order.
func (c *Cache) Flush(p *segments.Pager) error {
	n := len(c.cfg.Slots)
	if n == 0 || !c.dirty || !c.Loaded() {
		return nil
	}
	buckets := make([]payload, n)
	for i := range buckets {
		buckets[i].V = payloadVersion
		buckets[i].Entries = []wireEntry{}
	}
	for i, k := range c.sortedKeys() {
		e := c.entries[k]
		b := &buckets[i%n]
		b.Entries = append(b.Entries, wireEntry{K: k.String(), P: geo.EncodePath(e.path), T: e.lastUsed})
	}
	for i, slot := range c.cfg.Slots {
		if err := p.Save(slot, buckets[i]); err != nil {
			return err
		}
	}
	c.dirty = false
	return nil
}
