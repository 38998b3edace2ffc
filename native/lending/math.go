package lending

import "math/big"

var (
	basisPoints = big.NewInt(10_000)
	ray         = mustBigInt("1000000000000000000000000000") // 1e27 precision
	halfRay     = new(big.Int).Rsh(ray, 1)
)

func mustBigInt(value string) *big.Int {
	v, ok := new(big.Int).SetString(value, 10)
	if !ok {
		panic("invalid big integer constant")
	}
	return v
}

func rayMul(a, b *big.Int) *big.Int {
	if a == nil || b == nil {
		return big.NewInt(0)
	}
	product := new(big.Int).Mul(a, b)
	product.Add(product, halfRay)
	product.Quo(product, ray)
	return product
}

func rayDiv(a, b *big.Int) *big.Int {
	if a == nil || b == nil || b.Sign() == 0 {
		return big.NewInt(0)
	}
	numerator := new(big.Int).Mul(a, ray)
	numerator.Add(numerator, halfUp(b))
	numerator.Quo(numerator, b)
	return numerator
}

// rayPow raises a ray-precision base to an integer exponent by binary
// exponentiation. Intermediate products stay in big integers, so exponents up
// to multi-year second counts are exact apart from ray rounding.
func rayPow(base *big.Int, exp uint64) *big.Int {
	result := new(big.Int).Set(ray)
	if exp == 0 {
		return result
	}
	if base == nil || base.Sign() == 0 {
		return big.NewInt(0)
	}
	acc := new(big.Int).Set(base)
	for exp > 0 {
		if exp&1 == 1 {
			result = rayMul(result, acc)
		}
		exp >>= 1
		if exp > 0 {
			acc = rayMul(acc, acc)
		}
	}
	return result
}

// rescaleByIndex applies accrued interest to a stored raw amount using the
// ratio of the current index to the index recorded at the last touch. The
// multiplication happens before the division to preserve precision.
func rescaleByIndex(amount, storedIndex, currentIndex *big.Int) *big.Int {
	if amount == nil || amount.Sign() == 0 {
		return big.NewInt(0)
	}
	if storedIndex == nil || storedIndex.Sign() == 0 || currentIndex == nil {
		return new(big.Int).Set(amount)
	}
	scaled := new(big.Int).Mul(amount, currentIndex)
	scaled.Add(scaled, halfUp(storedIndex))
	scaled.Quo(scaled, storedIndex)
	return scaled
}

func ratToRay(r *big.Rat) *big.Int {
	if r == nil {
		return big.NewInt(0)
	}
	scaled := new(big.Rat).Mul(r, new(big.Rat).SetInt(ray))
	num := scaled.Num()
	den := scaled.Denom()
	if den.Sign() == 0 {
		return big.NewInt(0)
	}
	return new(big.Int).Quo(new(big.Int).Add(num, halfUp(den)), den)
}

func halfUp(x *big.Int) *big.Int {
	if x == nil {
		return big.NewInt(0)
	}
	if x.Sign() <= 0 {
		return big.NewInt(0)
	}
	half := new(big.Int).Add(x, big.NewInt(1))
	half.Rsh(half, 1)
	return half
}

func pow10(n int) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}
