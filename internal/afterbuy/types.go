package afterbuy

// Order is the subset of a GetSoldItems response the assistant speaks about.
type Order struct {
	OrderID       string
	InvoiceNumber string
	OrderDate     string
	EbayAccount   string
	Memo          string
	InvoiceMemo   string
	FeedbackLink  string
	Buyer         Buyer
	Payment       Payment
	Items         []SoldItem
	Shipping      Shipping
}

// Buyer holds the billing-address contact fields.
type Buyer struct {
	FirstName  string
	LastName   string
	Phone      string
	Email      string
	Street     string
	PostalCode string
	City       string
	Country    string
}

// Payment carries amounts as Afterbuy returns them, German decimal comma included.
type Payment struct {
	PaymentID   string
	PaymentDate string
	AlreadyPaid string
	FullAmount  string
	InvoiceDate string
}

type SoldItem struct {
	ItemID   string
	Title    string
	Quantity string
	Price    string
	TaxRate  string
	Weight   string
}

type Shipping struct {
	Cost      string
	TotalCost string
	TaxRate   string
}

// MemoInfo is the structured content of an order Memo field. Warehouse staff
// write memos by hand, so every field is best effort.
type MemoInfo struct {
	Raw            string
	Date           string
	CustomerName   string
	OrderInfo      string
	PaymentPercent string
	Amount         string
	AmountValue    float64
	Link           string
}
