package zones

import (
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/garagebid/garagebid-backend/internal/fees"
	"github.com/garagebid/garagebid-backend/pkg/config"
	pkgerrors "github.com/garagebid/garagebid-backend/pkg/errors"
)

const earthRadiusKM = 6371.0

// FeeResolver maps a delivery location to a delivery fee. The returned zone
// id is nil when the flat fallback applied.
type FeeResolver interface {
	FeeForLocation(ctx context.Context, lat, lng float64) (decimal.Decimal, *uuid.UUID, error)
}

type resolver struct {
	repo    Repository
	flatFee decimal.Decimal
}

// NewFeeResolver returns a resolver that prefers the tightest matching zone
// and falls back to the configured flat fee.
func NewFeeResolver(repo Repository, cfg config.MarketplaceConfig) (FeeResolver, error) {
	if repo == nil {
		return nil, fmt.Errorf("zone repository required")
	}
	return &resolver{
		repo:    repo,
		flatFee: fees.Round2(decimal.NewFromFloat(cfg.FlatDeliveryFee)),
	}, nil
}

func (r *resolver) FeeForLocation(ctx context.Context, lat, lng float64) (decimal.Decimal, *uuid.UUID, error) {
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return decimal.Zero, nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid delivery coordinates")
	}

	zones, err := r.repo.ListZones(ctx)
	if err != nil {
		return decimal.Zero, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list delivery zones")
	}

	// zones come back ordered tightest first, so the first hit wins
	for _, zone := range zones {
		if haversineKM(lat, lng, zone.CenterLat, zone.CenterLng) <= zone.RadiusKM {
			zoneID := zone.ID
			return zone.Fee, &zoneID, nil
		}
	}
	return r.flatFee, nil, nil
}

func haversineKM(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := toRadians(lat2 - lat1)
	dLng := toRadians(lng2 - lng1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(lat1))*math.Cos(toRadians(lat2))*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKM * math.Asin(math.Sqrt(a))
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
