package analysis

import "salone/internal/core"

// accumulator holds running totals keyed by operator and service. Every
// collection remembers first-seen order.
type accumulator struct {
	total float64

	operatorIndex map[string]int
	operators     []operatorTotals

	serviceIndex map[string]int
	services     core.Ranking
}

type operatorTotals struct {
	name    string
	revenue float64
	hours   float64
	count   int

	serviceIndex map[string]int
	services     []core.ServiceValue
}

func newAccumulator() *accumulator {
	return &accumulator{
		operatorIndex: make(map[string]int),
		serviceIndex:  make(map[string]int),
	}
}

func (a *accumulator) add(tx transaction) {
	a.total += tx.revenue

	i, ok := a.operatorIndex[tx.operator]
	if !ok {
		i = len(a.operators)
		a.operatorIndex[tx.operator] = i
		a.operators = append(a.operators, operatorTotals{
			name:         tx.operator,
			serviceIndex: make(map[string]int),
		})
	}
	op := &a.operators[i]
	op.revenue += tx.revenue
	op.hours += tx.hours
	op.count += tx.count
	op.addService(tx.service, tx.revenue, tx.hours)

	j, ok := a.serviceIndex[tx.service]
	if !ok {
		j = len(a.services)
		a.serviceIndex[tx.service] = j
		a.services = append(a.services, core.Amount{Name: tx.service})
	}
	a.services[j].Value += tx.revenue
}

func (o *operatorTotals) addService(service string, revenue, hours float64) {
	k, ok := o.serviceIndex[service]
	if !ok {
		k = len(o.services)
		o.serviceIndex[service] = k
		o.services = append(o.services, core.ServiceValue{Service: service})
	}
	o.services[k].Revenue += revenue
	o.services[k].Hours += hours
}

// derive builds the read-only view. A zero divisor yields +Inf, or NaN when
// the dividend is zero too.
func (a *accumulator) derive() core.PeriodAnalysis {
	n := len(a.operators)
	out := core.PeriodAnalysis{
		TotalRevenue:                 a.total,
		SortedServices:               append(core.Ranking(nil), a.services...),
		SortedOperators:              make(core.Ranking, 0, n),
		OperatorHours:                make(core.Ranking, 0, n),
		OperatorHourlyRates:          make(core.Ranking, 0, n),
		OperatorAverageServiceValues: make(core.Ranking, 0, n),
		OperatorServiceCounts:        make(core.Counts, 0, n),
		OperatorServiceValues:        make(core.ServiceBreakdown, 0, n),
	}
	if out.SortedServices == nil {
		out.SortedServices = core.Ranking{}
	}

	for _, op := range a.operators {
		out.SortedOperators = append(out.SortedOperators, core.Amount{Name: op.name, Value: op.revenue})
		out.OperatorHours = append(out.OperatorHours, core.Amount{Name: op.name, Value: op.hours})
		out.OperatorHourlyRates = append(out.OperatorHourlyRates, core.Amount{Name: op.name, Value: op.revenue / op.hours})
		out.OperatorAverageServiceValues = append(out.OperatorAverageServiceValues, core.Amount{Name: op.name, Value: op.revenue / float64(op.count)})
		out.OperatorServiceCounts = append(out.OperatorServiceCounts, core.Count{Name: op.name, Value: op.count})
		out.OperatorServiceValues = append(out.OperatorServiceValues, core.OperatorServices{
			Operator: op.name,
			Services: append([]core.ServiceValue(nil), op.services...),
		})
	}

	out.SortedServices.SortDesc()
	out.SortedOperators.SortDesc()
	out.OperatorHourlyRates.SortDesc()
	out.OperatorAverageServiceValues.SortDesc()
	return out
}
