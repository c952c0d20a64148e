package pricing

import "github.com/shopspring/decimal"

// aggregateLocked derives the base token's USD price from the current
// round's pair accumulators via weighted multi-hub aggregation: one
// volume-weighted aggregate per pricing-asset hub, then a volume-weighted
// combination across hubs. ok is false when no hub produced an aggregate.
func (e *Engine) aggregateLocked(baseToken string) (price, volume decimal.Decimal, pools []PoolPrice, ok bool) {
	totalVolume := decimal.Zero
	weightedSum := decimal.Zero
	pools = []PoolPrice{}

	for _, hub := range e.pricingAssets {
		obs := e.pairObs[pairKey(baseToken, hub)]
		if len(obs) == 0 {
			continue
		}
		hubUSD, known := e.usdPrice[hub]
		if !known || !hubUSD.IsPositive() {
			continue
		}

		hubPrice, hubVolume, hubPools := aggregateHub(obs, hubUSD, e.cfg.PriceDecimals)
		if !hubVolume.IsPositive() {
			// A hub with zero traded volume contributes no aggregate.
			continue
		}

		pools = append(pools, hubPools...)
		weightedSum = weightedSum.Add(hubPrice.Mul(hubVolume))
		totalVolume = totalVolume.Add(hubVolume)
	}

	if !totalVolume.IsPositive() {
		return decimal.Zero, decimal.Zero, nil, false
	}

	price = weightedSum.Div(totalVolume)
	if _, stable := e.usdStable[baseToken]; stable {
		price = one
	}
	return price, totalVolume, pools, true
}

// aggregateHub volume-weights one pair's observations: first within each
// pool, then across pools, with prices converted to USD via the hub's USD
// price.
func aggregateHub(obs []observation, hubUSD decimal.Decimal, priceDecimals int32) (decimal.Decimal, decimal.Decimal, []PoolPrice) {
	type poolAccum struct {
		value    decimal.Decimal
		volume   decimal.Decimal
		poolInfo PoolPrice
	}

	order := make([]string, 0, 4)
	perPool := make(map[string]*poolAccum, 4)
	for _, o := range obs {
		acc, seen := perPool[o.pool]
		if !seen {
			acc = &poolAccum{
				value:  decimal.Zero,
				volume: decimal.Zero,
				poolInfo: PoolPrice{
					Address:  o.pool,
					Protocol: o.protocol,
				},
			}
			perPool[o.pool] = acc
			order = append(order, o.pool)
		}
		acc.value = acc.value.Add(o.price.Mul(o.volume))
		acc.volume = acc.volume.Add(o.volume)
	}

	hubValue := decimal.Zero
	hubVolume := decimal.Zero
	pools := make([]PoolPrice, 0, len(order))
	for _, pool := range order {
		acc := perPool[pool]
		if !acc.volume.IsPositive() {
			continue
		}
		poolPrice := acc.value.Div(acc.volume).Mul(hubUSD)
		pools = append(pools, PoolPrice{
			Price:    poolPrice.Round(priceDecimals),
			Volume:   acc.volume.Round(priceDecimals),
			Address:  acc.poolInfo.Address,
			Protocol: acc.poolInfo.Protocol,
		})
		hubValue = hubValue.Add(acc.value)
		hubVolume = hubVolume.Add(acc.volume)
	}

	if !hubVolume.IsPositive() {
		return decimal.Zero, decimal.Zero, nil
	}
	return hubValue.Div(hubVolume).Mul(hubUSD), hubVolume, pools
}
