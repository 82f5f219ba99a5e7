package paymentprovider

// CreateSessionParams параметры создания checkout-сессии.
type CreateSessionParams struct {
	AmountCents int               // сумма в центах
	Currency    string            // валюта, например "usd"
	ProductName string            // название позиции в checkout
	SuccessURL  string            // редирект после успешной оплаты
	CancelURL   string            // редирект при отмене
	Metadata    map[string]string // user_id, days
}

// CheckoutSession представляет созданную checkout-сессию.
type CheckoutSession struct {
	ID  string `json:"id"`  // идентификатор сессии
	URL string `json:"url"` // адрес hosted checkout страницы
}

// Event входящее webhook-событие платёжного шлюза.
type Event struct {
	Type string `json:"type" validate:"required"`
	Data struct {
		Object struct {
			ID            string            `json:"id"`
			PaymentStatus string            `json:"payment_status"` // например "paid"
			Metadata      map[string]string `json:"metadata"`       // user_id, days
		} `json:"object"`
	} `json:"data"`
}

// EventCheckoutCompleted тип события завершённой checkout-сессии.
const EventCheckoutCompleted = "checkout.session.completed"

// PaymentStatusPaid статус полностью оплаченной сессии.
const PaymentStatusPaid = "paid"
