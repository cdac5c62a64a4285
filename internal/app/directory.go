package app

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/carewire/teleconsult/internal/core"
	"github.com/carewire/teleconsult/internal/domain"
)

type binding struct {
	Consultation domain.ConsultationID
	Identity     domain.Identity
}

// Directory maps a live connection to the consultation and identity it is
// bound to. Every inbound event resolves its room context here instead of
// repeating the consultation id in the payload.
type Directory struct {
	mu       sync.RWMutex
	bindings map[core.ConnID]binding
}

func NewDirectory() *Directory {
	return &Directory{bindings: make(map[core.ConnID]binding)}
}

// Bind records the binding for cid. Rebinding a live connection is a
// protocol violation; it is logged and overwritten rather than crashing.
func (d *Directory) Bind(cid core.ConnID, id domain.ConsultationID, identity domain.Identity) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if prev, ok := d.bindings[cid]; ok {
		log.Warn().Str("module", "app.directory").Str("cid", string(cid)).
			Str("prev_consultation", string(prev.Consultation)).
			Str("consultation", string(id)).Msg("rebinding live connection")
	}
	d.bindings[cid] = binding{Consultation: id, Identity: identity}
	log.Info().Str("module", "app.directory").Str("cid", string(cid)).Str("consultation", string(id)).Msg("bound connection")
}

func (d *Directory) Resolve(cid core.ConnID) (domain.ConsultationID, domain.Identity, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	b, ok := d.bindings[cid]
	if !ok {
		return "", domain.Identity{}, false
	}
	return b.Consultation, b.Identity, true
}

func (d *Directory) Unbind(cid core.ConnID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.bindings, cid)
	log.Info().Str("module", "app.directory").Str("cid", string(cid)).Msg("unbound connection")
}
