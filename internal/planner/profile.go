package planner

import (
	"context"

	"github.com/dukerupert/zenith/internal/live"
	"github.com/dukerupert/zenith/internal/model"
	"github.com/dukerupert/zenith/internal/store"
	"github.com/dukerupert/zenith/internal/writer"
)

// Profile is the live profile document of one user.
type Profile struct {
	scope
	d   *Deps
	doc *live.Document[model.Profile]
}

func newProfile(d *Deps) *Profile {
	return &Profile{d: d, doc: live.NewDocument[model.Profile](d.Bus, d.Logger)}
}

func (p *Profile) bind(uid string) {
	p.setUser(uid)
	if uid == "" {
		p.doc.Bind(nil, nil)
		return
	}
	p.doc.Bind(&live.Ref{Path: store.UserPath(uid)}, func(ctx context.Context) (*model.Profile, error) {
		return p.d.Profiles.Get(ctx, uid)
	})
}

// Get returns the current profile, nil if none was saved yet.
func (p *Profile) Get() (*model.Profile, bool) {
	return p.doc.Snapshot()
}

// Merge writes the fields set in u and keeps the rest.
func (p *Profile) Merge(ctx context.Context, u model.ProfileUpdate) (*model.Profile, error) {
	uid, err := p.user()
	if err != nil {
		return nil, err
	}

	var merged *model.Profile
	err = p.d.Writer.Do(ctx, writer.Write{
		UserID: uid,
		Path:   store.UserPath(uid),
		Op:     writer.OpUpdate,
		Data:   u,
		Topics: []string{store.UserPath(uid)},
		Apply: func(ctx context.Context) error {
			profile, err := p.d.Profiles.Merge(ctx, uid, u)
			merged = profile
			return err
		},
	})
	if err != nil {
		return nil, err
	}
	return merged, nil
}
