package models

// Plan описывает тарифный план подписки: цена в центах и длительность в днях.
// Таблица планов задаётся конфигурацией; ключ — имя плана.
type Plan struct {
	Name        string `yaml:"name"`
	AmountCents int    `yaml:"amount_cents"`
	Days        int    `yaml:"days"`
}

// DefaultPlans тарифы по умолчанию, если конфигурация их не переопределяет.
func DefaultPlans() []Plan {
	return []Plan{
		{Name: "week", AmountCents: 5000, Days: 7},
		{Name: "biweekly", AmountCents: 8000, Days: 14},
	}
}

// FindPlan ищет план по имени в списке; второй результат сообщает об успехе.
func FindPlan(plans []Plan, name string) (Plan, bool) {
	for _, p := range plans {
		if p.Name == name {
			return p, true
		}
	}
	return Plan{}, false
}
