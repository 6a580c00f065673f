package subscription

import (
	"go.uber.org/zap"
	"gorm.io/gorm"

	"kost-service/internal/model"
	"kost-service/pkg/logger"
)

// Well-known feature names.
const (
	FeatureTenantData          = "tenant_data"
	FeatureMarketplaceListing  = "marketplace_listing"
	FeatureFinancialReports    = "financial_reports"
	FeatureAutoBilling         = "auto_billing"
	FeatureDataExport          = "data_export"
	FeatureMaintenanceTracking = "maintenance_tracking"
)

// FeatureSet is the resolved feature map of an owner's active plan.
type FeatureSet map[string]interface{}

// Has reports whether a feature is enabled: any stored value other than
// nil/absent or false counts as enabled, so tier strings like "advanced"
// are truthy.
func (f FeatureSet) Has(name string) bool {
	v, ok := f[name]
	if !ok || v == nil {
		return false
	}
	if b, isBool := v.(bool); isBool {
		return b
	}
	return true
}

// Value returns the raw stored value for tiered features
// (e.g. "basic" | "advanced" | "predictive" for financial_reports).
func (f FeatureSet) Value(name string) interface{} {
	v, ok := f[name]
	if !ok {
		return nil
	}
	return v
}

// DefaultFeatures is the fixed fallback set used when a user has no active
// subscription or the lookup fails: only tenant data is enabled.
func DefaultFeatures() FeatureSet {
	return FeatureSet{
		FeatureTenantData:          true,
		FeatureMarketplaceListing:  false,
		FeatureFinancialReports:    false,
		FeatureAutoBilling:         false,
		FeatureDataExport:          false,
		FeatureMaintenanceTracking: false,
	}
}

// Resolver loads the active subscription's plan feature map for a user.
type Resolver struct {
	db *gorm.DB
}

// NewResolver creates a feature resolver backed by the given database
func NewResolver(db *gorm.DB) *Resolver {
	return &Resolver{db: db}
}

// Features resolves the feature set for a user. Missing subscriptions and
// lookup errors both fall back to the default basic set; the error return is
// informational so callers can log it without changing behavior.
func (r *Resolver) Features(userID uint) (FeatureSet, error) {
	var sub model.Subscription
	err := r.db.Preload("Plan").
		Where("user_id = ? AND status = ?", userID, model.SubscriptionActive).
		Order("created_at DESC").
		First(&sub).Error
	if err != nil {
		if err != gorm.ErrRecordNotFound {
			logger.GetLogger().Warn("feature lookup failed, using defaults",
				zap.Uint("user_id", userID), zap.Error(err))
			return DefaultFeatures(), err
		}
		return DefaultFeatures(), nil
	}

	if len(sub.Plan.Features) == 0 {
		return DefaultFeatures(), nil
	}

	features := make(FeatureSet, len(sub.Plan.Features))
	for k, v := range sub.Plan.Features {
		features[k] = v
	}
	return features, nil
}
