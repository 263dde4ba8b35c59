// Package dataset defines the GeneNetwork resource types served by the
// proxy: published phenotype traits, probe set traits, and genotype data.
//
// Each type's action set follows the same shape — a data branch and a
// metadata branch whose ladders start at a deny action, and an admin branch
// (not-admin, edit-access, edit-admins) gating mask administration. All
// query handlers use bound-parameter execution; no value is ever formatted
// into query text.
package dataset

import (
	"context"

	"github.com/jgarte/gn-proxy/access"
	"github.com/jgarte/gn-proxy/backend"
)

// Registered resource type names.
const (
	TypePublish = "dataset-publish"
	TypeProbe   = "dataset-probe"
	TypeGeno    = "dataset-geno"
)

// Resource data keys consumed by the handlers.
const (
	KeyDataset = "dataset"
	KeyTrait   = "trait"
)

// RegisterTypes registers every GeneNetwork resource type with the
// registry. Called once at startup.
func RegisterTypes(r *access.Registry) error {
	for name, set := range map[string]*access.ActionSet{
		TypePublish: publishSet(),
		TypeProbe:   probeSet(),
		TypeGeno:    genoSet(),
	} {
		if err := r.Register(name, set); err != nil {
			return err
		}
	}
	return nil
}

func publishSet() *access.ActionSet {
	return access.NewActionSet().
		Add("data", access.MustBranch(
			access.DenyAction("no-access"),
			access.Action{Name: "view", Handler: publishViewData},
		)).
		Add("metadata", access.MustBranch(
			access.DenyAction("no-access"),
			access.Action{Name: "view", Handler: publishViewMetadata},
		)).
		Add("admin", adminBranch())
}

func probeSet() *access.ActionSet {
	return access.NewActionSet().
		Add("data", access.MustBranch(
			access.DenyAction("no-access"),
			access.Action{Name: "view", Handler: probeViewData},
		)).
		Add("admin", adminBranch())
}

func genoSet() *access.ActionSet {
	return access.NewActionSet().
		Add("data", access.MustBranch(
			access.DenyAction("no-access"),
			access.Action{Name: "view", Handler: genoViewData},
		)).
		Add("admin", adminBranch())
}

// adminBranch gates mask administration: level 1 (edit-access) may grant
// and revoke user masks, level 2 (edit-admins) may hand out admin levels.
// The actions themselves touch no backend data.
func adminBranch() *access.Branch {
	return access.MustBranch(
		access.DenyAction("not-admin"),
		adminAction("edit-access"),
		adminAction("edit-admins"),
	)
}

func adminAction(name string) access.Action {
	return access.Action{
		Name: name,
		Handler: func(ctx context.Context, qx backend.Querier, data, args access.Params) (any, error) {
			return map[string]string{"status": "ok", "grants": name}, nil
		},
	}
}

func publishViewData(ctx context.Context, qx backend.Querier, data, args access.Params) (any, error) {
	const q = `
		SELECT Strain.Name, PublishData.value, PublishSE.error
		FROM PublishData
		INNER JOIN Strain ON PublishData.StrainId = Strain.Id
		LEFT JOIN PublishSE
			ON PublishSE.DataId = PublishData.Id
			AND PublishSE.StrainId = PublishData.StrainId
		WHERE PublishData.Id = ?
		ORDER BY Strain.Id`
	return qx.Query(ctx, q, data[KeyTrait])
}

func publishViewMetadata(ctx context.Context, qx backend.Querier, data, args access.Params) (any, error) {
	const q = `
		SELECT Publication.Title, Publication.Authors, Publication.Year
		FROM Publication
		INNER JOIN PublishXRef ON PublishXRef.PublicationId = Publication.Id
		WHERE PublishXRef.Id = ? AND PublishXRef.InbredSetId = ?`
	return qx.Query(ctx, q, data[KeyTrait], data[KeyDataset])
}

func probeViewData(ctx context.Context, qx backend.Querier, data, args access.Params) (any, error) {
	const q = `
		SELECT Strain.Name, ProbeSetData.value
		FROM ProbeSetData
		INNER JOIN Strain ON ProbeSetData.StrainId = Strain.Id
		WHERE ProbeSetData.Id = ?
		ORDER BY Strain.Id`
	return qx.Query(ctx, q, data[KeyTrait])
}

func genoViewData(ctx context.Context, qx backend.Querier, data, args access.Params) (any, error) {
	const q = `
		SELECT Strain.Name, GenoData.value
		FROM GenoData
		INNER JOIN Strain ON GenoData.StrainId = Strain.Id
		WHERE GenoData.Id = ?
		ORDER BY Strain.Id`
	return qx.Query(ctx, q, data[KeyTrait])
}
