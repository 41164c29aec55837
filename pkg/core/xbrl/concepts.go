package xbrl

import (
	"fmt"
	"os"

	yaml "gopkg.in/yaml.v2"
)

// CacheFormatVersion tags the on-disk cache layout. It must be bumped
// whenever the concept mapping below changes shape.
const CacheFormatVersion = "3.0_revenue_concepts"

// ConceptFields lists the 49 universal concept field names in their
// canonical order: DEI, income statement, assets, liabilities & equity,
// cash flow, then other.
var ConceptFields = []string{
	// Document Entity Information (8)
	"dei_entity_central_index_key",
	"dei_document_fiscal_period_focus",
	"dei_document_fiscal_year_focus",
	"dei_document_period_end_date",
	"dei_document_type",
	"dei_entity_registrant_name",
	"dei_entity_common_stock_shares_outstanding",
	"dei_current_fiscal_year_end_date",

	// Income Statement (10)
	"revenues",
	"revenue_from_contract_with_customer_excluding_assessed_tax",
	"research_and_development_expense",
	"selling_general_administrative_expense",
	"net_income_loss",
	"earnings_per_share_basic",
	"earnings_per_share_diluted",
	"weighted_average_shares_outstanding_basic",
	"weighted_average_shares_outstanding_diluted",
	"other_comprehensive_income_loss_net_of_tax",

	// Balance Sheet - Assets (7)
	"cash_and_cash_equivalents",
	"accounts_receivable_net_current",
	"prepaid_expense_and_other_assets_current",
	"assets_current",
	"property_plant_equipment_net",
	"intangible_assets_net_excluding_goodwill",
	"assets_total",

	// Balance Sheet - Liabilities & Equity (11)
	"accounts_payable_current",
	"liabilities_current",
	"long_term_debt_noncurrent",
	"other_liabilities_noncurrent",
	"liabilities_total",
	"common_stock_shares_authorized",
	"common_stock_shares_outstanding",
	"common_stock_value",
	"additional_paid_in_capital",
	"retained_earnings_accumulated_deficit",
	"stockholders_equity",

	// Cash Flow Statement (8)
	"share_based_compensation",
	"net_cash_operating_activities",
	"payments_to_acquire_ppe",
	"net_cash_investing_activities",
	"net_cash_financing_activities",
	"cash_restricted_cash_equivalents",
	"increase_decrease_accounts_payable",
	"adjustments_additional_paid_in_capital_share_compensation",

	// Other (5)
	"liabilities_and_stockholders_equity",
	"common_stock_par_stated_value_per_share",
	"accumulated_other_comprehensive_income_loss",
	"operating_lease_right_of_use_asset",
	"operating_lease_liability_noncurrent",
}

// ConceptTags maps each field name to its XBRL taxonomy tag. This table is a
// schema contract: records cached under one CacheFormatVersion were filtered
// against exactly this mapping.
var ConceptTags = map[string]string{
	"dei_entity_central_index_key":               "dei:EntityCentralIndexKey",
	"dei_document_fiscal_period_focus":           "dei:DocumentFiscalPeriodFocus",
	"dei_document_fiscal_year_focus":             "dei:DocumentFiscalYearFocus",
	"dei_document_period_end_date":               "dei:DocumentPeriodEndDate",
	"dei_document_type":                          "dei:DocumentType",
	"dei_entity_registrant_name":                 "dei:EntityRegistrantName",
	"dei_entity_common_stock_shares_outstanding": "dei:EntityCommonStockSharesOutstanding",
	"dei_current_fiscal_year_end_date":           "dei:CurrentFiscalYearEndDate",

	"revenues": "us-gaap:Revenues",
	"revenue_from_contract_with_customer_excluding_assessed_tax": "us-gaap:RevenueFromContractWithCustomerExcludingAssessedTax",
	"research_and_development_expense":                           "us-gaap:ResearchAndDevelopmentExpense",
	"selling_general_administrative_expense":                     "us-gaap:SellingGeneralAndAdministrativeExpense",
	"net_income_loss":                                            "us-gaap:NetIncomeLoss",
	"earnings_per_share_basic":                                   "us-gaap:EarningsPerShareBasic",
	"earnings_per_share_diluted":                                 "us-gaap:EarningsPerShareDiluted",
	"weighted_average_shares_outstanding_basic":                  "us-gaap:WeightedAverageNumberOfSharesOutstandingBasic",
	"weighted_average_shares_outstanding_diluted":                "us-gaap:WeightedAverageNumberOfDilutedSharesOutstanding",
	"other_comprehensive_income_loss_net_of_tax":                 "us-gaap:OtherComprehensiveIncomeLossNetOfTax",

	"cash_and_cash_equivalents":                "us-gaap:CashAndCashEquivalentsAtCarryingValue",
	"accounts_receivable_net_current":          "us-gaap:AccountsReceivableNetCurrent",
	"prepaid_expense_and_other_assets_current": "us-gaap:PrepaidExpenseAndOtherAssetsCurrent",
	"assets_current":                           "us-gaap:AssetsCurrent",
	"property_plant_equipment_net":             "us-gaap:PropertyPlantAndEquipmentNet",
	"intangible_assets_net_excluding_goodwill": "us-gaap:IntangibleAssetsNetExcludingGoodwill",
	"assets_total":                             "us-gaap:Assets",

	"accounts_payable_current":              "us-gaap:AccountsPayableCurrent",
	"liabilities_current":                   "us-gaap:LiabilitiesCurrent",
	"long_term_debt_noncurrent":             "us-gaap:LongTermDebtNoncurrent",
	"other_liabilities_noncurrent":          "us-gaap:OtherLiabilitiesNoncurrent",
	"liabilities_total":                     "us-gaap:Liabilities",
	"common_stock_shares_authorized":        "us-gaap:CommonStockSharesAuthorized",
	"common_stock_shares_outstanding":       "us-gaap:CommonStockSharesOutstanding",
	"common_stock_value":                    "us-gaap:CommonStockValue",
	"additional_paid_in_capital":            "us-gaap:AdditionalPaidInCapital",
	"retained_earnings_accumulated_deficit": "us-gaap:RetainedEarningsAccumulatedDeficit",
	"stockholders_equity":                   "us-gaap:StockholdersEquity",

	"share_based_compensation":           "us-gaap:ShareBasedCompensation",
	"net_cash_operating_activities":      "us-gaap:NetCashProvidedByUsedInOperatingActivities",
	"payments_to_acquire_ppe":            "us-gaap:PaymentsToAcquirePropertyPlantAndEquipment",
	"net_cash_investing_activities":      "us-gaap:NetCashProvidedByUsedInInvestingActivities",
	"net_cash_financing_activities":      "us-gaap:NetCashProvidedByUsedInFinancingActivities",
	"cash_restricted_cash_equivalents":   "us-gaap:CashCashEquivalentsRestrictedCashAndRestrictedCashEquivalents",
	"increase_decrease_accounts_payable": "us-gaap:IncreaseDecreaseInAccountsPayable",
	"adjustments_additional_paid_in_capital_share_compensation": "us-gaap:AdjustmentsToAdditionalPaidInCapitalSharebasedCompensationRequisiteServicePeriodRecognitionValue",

	"liabilities_and_stockholders_equity":         "us-gaap:LiabilitiesAndStockholdersEquity",
	"common_stock_par_stated_value_per_share":     "us-gaap:CommonStockParOrStatedValuePerShare",
	"accumulated_other_comprehensive_income_loss": "us-gaap:AccumulatedOtherComprehensiveIncomeLossNetOfTax",
	"operating_lease_right_of_use_asset":          "us-gaap:OperatingLeaseRightOfUseAsset",
	"operating_lease_liability_noncurrent":        "us-gaap:OperatingLeaseLiabilityNoncurrent",
}

// ConceptCount is the number of tracked universal concepts.
var ConceptCount = len(ConceptFields)

// WriteConceptMapYAML dumps the concept mapping with its format version to a
// YAML file, preserving canonical field order, for schema-contract audits.
func WriteConceptMapYAML(path string) error {
	doc := yaml.MapSlice{
		{Key: "cache_format_version", Value: CacheFormatVersion},
		{Key: "concept_count", Value: ConceptCount},
	}
	concepts := yaml.MapSlice{}
	for _, field := range ConceptFields {
		concepts = append(concepts, yaml.MapItem{Key: field, Value: ConceptTags[field]})
	}
	doc = append(doc, yaml.MapItem{Key: "concepts", Value: concepts})

	out, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal concept map: %w", err)
	}
	return os.WriteFile(path, out, 0644)
}

// LoadConceptMapYAML reads a concept map dump and verifies it against the
// compiled-in mapping. A mismatch means cached data was written under a
// different schema contract.
func LoadConceptMapYAML(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var doc struct {
		CacheFormatVersion string            `yaml:"cache_format_version"`
		Concepts           map[string]string `yaml:"concepts"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("failed to parse concept map: %w", err)
	}
	if doc.CacheFormatVersion != CacheFormatVersion {
		return fmt.Errorf("concept map version %q does not match %q", doc.CacheFormatVersion, CacheFormatVersion)
	}
	for field, tag := range doc.Concepts {
		if ConceptTags[field] != tag {
			return fmt.Errorf("concept %q maps to %q, expected %q", field, tag, ConceptTags[field])
		}
	}
	return nil
}
