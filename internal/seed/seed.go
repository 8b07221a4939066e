// Package seed loads a guild roster into the service, either from a YAML
// file or from a generated one.
package seed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/okian/lootrota/internal/adapters/repository"
	service "github.com/okian/lootrota/internal/app"
	"github.com/okian/lootrota/internal/domain/model"
	"github.com/okian/lootrota/pkg/logger"
)

// Sentinel kinds for seed errors.
var (
	ErrInvalidRoster = errors.New("invalid roster")
)

// PlayerSpec is one roster player.
type PlayerSpec struct {
	Name        string `yaml:"name"`
	CombatPower string `yaml:"combat_power"`
	Class       string `yaml:"class"`
	Role        string `yaml:"role"`
	Balance     int64  `yaml:"balance"`
}

// ItemSpec is one roster item.
type ItemSpec struct {
	Name        string `yaml:"name"`
	Rarity      string `yaml:"rarity"`
	Stats       string `yaml:"stats"`
	Chance      string `yaml:"chance"`
	IconURL     string `yaml:"icon_url"`
	Cost        int64  `yaml:"cost"`
	LimitToTopN bool   `yaml:"limit_to_top_n"`
}

// Roster is the file format.
//
//	players:
//	  - name: Aria
//	    combat_power: 1.2M
//	    class: Elf
//	    balance: 300
//	items:
//	  - name: Wings of Storm
//	    cost: 200
//	    limit_to_top_n: true
type Roster struct {
	Players []PlayerSpec `yaml:"players"`
	Items   []ItemSpec   `yaml:"items"`
}

// Parse decodes and validates a YAML roster.
func Parse(r io.Reader) (Roster, error) {
	var ro Roster
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&ro); err != nil && !errors.Is(err, io.EOF) {
		return Roster{}, fmt.Errorf("%w: %w", ErrInvalidRoster, err)
	}
	if err := ro.Validate(); err != nil {
		return Roster{}, err
	}
	return ro, nil
}

// LoadFile reads a roster from path.
func LoadFile(path string) (Roster, error) {
	f, err := os.Open(path)
	if err != nil {
		return Roster{}, fmt.Errorf("open roster: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Validate checks names, balances and costs.
func (ro Roster) Validate() error {
	for i, p := range ro.Players {
		switch {
		case strings.TrimSpace(p.Name) == "":
			return fmt.Errorf("%w: player %d has no name", ErrInvalidRoster, i)
		case p.Balance < 0:
			return fmt.Errorf("%w: player %q has a negative balance", ErrInvalidRoster, p.Name)
		}
	}
	for i, it := range ro.Items {
		switch {
		case strings.TrimSpace(it.Name) == "":
			return fmt.Errorf("%w: item %d has no name", ErrInvalidRoster, i)
		case it.Cost < 0:
			return fmt.Errorf("%w: item %q has a negative cost", ErrInvalidRoster, it.Name)
		}
	}
	return nil
}

// Registrar is the part of the service a seed run writes through.
type Registrar interface {
	RegisterPlayer(ctx context.Context, in service.PlayerInput) (model.Player, error)
	UpdatePlayer(ctx context.Context, id string, patch repository.PlayerPatch) (model.Player, error)
	RegisterItem(ctx context.Context, it model.Item) (model.Item, error)
}

// Result counts what a seed run created.
type Result struct {
	Players int
	Items   int
}

// Apply registers every player and item of ro. Players with a starting
// balance are topped up after registration. Apply stops at the first error.
func Apply(ctx context.Context, reg Registrar, ro Roster) (Result, error) {
	var res Result
	log := logger.Get().Named("seed")

	for _, ps := range ro.Players {
		p, err := reg.RegisterPlayer(ctx, service.PlayerInput{
			Name:        ps.Name,
			CombatPower: ps.CombatPower,
			Class:       model.Class(ps.Class),
			Role:        model.Role(ps.Role),
		})
		if err != nil {
			return res, fmt.Errorf("register player %q: %w", ps.Name, err)
		}
		if ps.Balance > 0 {
			bal := ps.Balance
			if _, err := reg.UpdatePlayer(ctx, p.ID, repository.PlayerPatch{Balance: &bal}); err != nil {
				return res, fmt.Errorf("set balance of %q: %w", ps.Name, err)
			}
		}
		res.Players++
	}

	for _, is := range ro.Items {
		_, err := reg.RegisterItem(ctx, model.Item{
			Name:        is.Name,
			Rarity:      model.Rarity(is.Rarity),
			Stats:       is.Stats,
			Chance:      is.Chance,
			IconURL:     is.IconURL,
			Cost:        is.Cost,
			LimitToTopN: is.LimitToTopN,
		})
		if err != nil {
			return res, fmt.Errorf("register item %q: %w", is.Name, err)
		}
		res.Items++
	}

	log.Info(ctx, "roster seeded", logger.Int("players", res.Players), logger.Int("items", res.Items))
	return res, nil
}
