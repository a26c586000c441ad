package allocation

import (
	"strings"

	"github.com/bobmcallan/tiller/internal/models"
)

// assetTypeRule maps symbol/category substrings to an inferred asset type.
type assetTypeRule struct {
	assetType        models.AssetType
	symbolContains   []string
	symbolEquals     []string
	categoryContains []string
}

// Rules are evaluated in fixed priority order; the first hit wins.
var assetTypeRules = []assetTypeRule{
	{
		assetType:      models.AssetTypeCrypto,
		symbolContains: []string{"BTC", "ETH"},
		symbolEquals:   []string{"COIN", "GBTC"},
	},
	{
		assetType:        models.AssetTypeBond,
		symbolContains:   []string{"BND", "TIP", "AGG"},
		categoryContains: []string{"bond"},
	},
	{
		assetType:        models.AssetTypeREIT,
		symbolContains:   []string{"REIT", "VNQ", "REET"},
		categoryContains: []string{"reit", "real estate"},
	},
	{
		assetType:        models.AssetTypeCommodity,
		symbolContains:   []string{"GLD", "SLV", "USAG"},
		categoryContains: []string{"commodity", "gold", "silver"},
	},
	{
		assetType:        models.AssetTypeCash,
		symbolContains:   []string{"SGOV", "CSH"},
		categoryContains: []string{"cash", "money market"},
	},
}

// InferAssetType guesses an asset type from symbol and category substrings.
// Used only for holdings no target claimed; everything else defaults to
// Stock.
func InferAssetType(symbol, category string) models.AssetType {
	symbolUpper := strings.ToUpper(strings.TrimSpace(symbol))
	categoryLower := strings.ToLower(strings.TrimSpace(category))

	for _, rule := range assetTypeRules {
		for _, kw := range rule.symbolEquals {
			if symbolUpper == kw {
				return rule.assetType
			}
		}
		for _, kw := range rule.symbolContains {
			if strings.Contains(symbolUpper, kw) {
				return rule.assetType
			}
		}
		for _, kw := range rule.categoryContains {
			if categoryLower != "" && strings.Contains(categoryLower, kw) {
				return rule.assetType
			}
		}
	}

	return models.AssetTypeStock
}
