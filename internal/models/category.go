package models

// Category represents the primary tax category assigned by the upstream classifier.
type Category string

const (
	CategoryRnD              Category = "Research & Development"
	CategorySoftware         Category = "Software & Subscriptions"
	CategoryContractors      Category = "Contractors"
	CategoryWages            Category = "Wages & Salaries"
	CategoryMaterials        Category = "Materials & Consumables"
	CategoryEquipment        Category = "Plant & Equipment"
	CategoryRevenue          Category = "Revenue"
	CategoryOperating        Category = "Operating Expenses"
	CategoryAssetDisposal    Category = "Asset Disposal"
	CategoryCapitalGain      Category = "Capital Gains"
	CategoryShareholderLoans Category = "Shareholder Loans"
	CategoryOther            Category = "Other"
)

// TransactionType is the accounting-platform type code of a transaction.
type TransactionType string

const (
	TypeReceivable       TransactionType = "ACCREC"
	TypePayable          TransactionType = "ACCPAY"
	TypeReceivableCredit TransactionType = "ACCRECCREDIT"
	TypePayableCredit    TransactionType = "ACCPAYCREDIT"
	TypeBank             TransactionType = "BANK"
	TypeSpend            TransactionType = "SPEND"
	TypeReceive          TransactionType = "RECEIVE"
)
