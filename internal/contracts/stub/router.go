package stub

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"fee-token-lab/internal/contracts"
)

// ErrInsufficientFunds is returned, unwrapped from ErrReverted, when the sender
// cannot cover the attached native value. A node rejects such a transaction
// before execution.
var ErrInsufficientFunds = errors.New("insufficient funds for transfer")

func (r *Router) Address() common.Address { return RouterAddress }

func (r *Router) WETH(_ context.Context) (common.Address, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.enter("WETH"); err != nil {
		return common.Address{}, err
	}
	return PairAddress, nil
}

// AddLiquidityETH pools the sender's tokens against the attached native value.
// The first add fixes the price; later adds follow the pool ratio.
func (r *Router) AddLiquidityETH(_ context.Context, token common.Address, amountTokenDesired, amountTokenMin, amountETHMin *big.Int,
	_ common.Address, deadline *big.Int, opts contracts.TxOptions) (common.Hash, error) {
	m := r.m
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("addLiquidityETH"); err != nil {
		return common.Hash{}, err
	}
	if err := m.checkDeadline(deadline); err != nil {
		return common.Hash{}, err
	}
	if token != TokenAddress {
		return common.Hash{}, revert("UniswapV2Library: IDENTICAL_ADDRESSES")
	}
	value := valueOf(opts)
	sender := m.sender()
	if m.native(sender).Cmp(value) < 0 {
		return common.Hash{}, ErrInsufficientFunds
	}

	amountToken, amountETH := clone(amountTokenDesired), clone(value)
	if m.reserveToken.Sign() > 0 && m.reserveWETH.Sign() > 0 {
		optimalToken := new(big.Int).Mul(value, m.reserveToken)
		optimalToken.Quo(optimalToken, m.reserveWETH)
		if optimalToken.Cmp(amountTokenDesired) <= 0 {
			amountToken = optimalToken
		} else {
			optimalETH := new(big.Int).Mul(amountTokenDesired, m.reserveWETH)
			optimalETH.Quo(optimalETH, m.reserveToken)
			amountETH = optimalETH
		}
	}
	if amountTokenMin != nil && amountToken.Cmp(amountTokenMin) < 0 {
		return common.Hash{}, revert("UniswapV2Router: INSUFFICIENT_B_AMOUNT")
	}
	if amountETHMin != nil && amountETH.Cmp(amountETHMin) < 0 {
		return common.Hash{}, revert("UniswapV2Router: INSUFFICIENT_A_AMOUNT")
	}
	if m.allowanceOf(sender, RouterAddress).Cmp(amountToken) < 0 || m.balance(sender).Cmp(amountToken) < 0 {
		return common.Hash{}, revert("TransferHelper: TRANSFER_FROM_FAILED")
	}

	m.tokenBal[sender] = new(big.Int).Sub(m.balance(sender), amountToken)
	m.nativeBal[sender] = new(big.Int).Sub(m.native(sender), amountETH)
	m.setAllowance(sender, RouterAddress, new(big.Int).Sub(m.allowanceOf(sender, RouterAddress), amountToken))
	m.reserveToken = new(big.Int).Add(m.reserveToken, amountToken)
	m.reserveWETH = new(big.Int).Add(m.reserveWETH, amountETH)
	if !m.initialized {
		m.initialized = true
		m.initialMcap = m.dilutedMcap()
	}
	return m.nextTx(), nil
}

// SwapExactETHForTokensSupportingFeeOnTransferTokens buys tokens; the transfer
// fee is withheld from the output.
func (r *Router) SwapExactETHForTokensSupportingFeeOnTransferTokens(_ context.Context, amountOutMin *big.Int, path []common.Address,
	to common.Address, deadline *big.Int, opts contracts.TxOptions) (common.Hash, error) {
	m := r.m
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("swapExactETHForTokensSupportingFeeOnTransferTokens"); err != nil {
		return common.Hash{}, err
	}
	if err := m.checkDeadline(deadline); err != nil {
		return common.Hash{}, err
	}
	if len(path) != 2 || path[0] != PairAddress || path[1] != TokenAddress {
		return common.Hash{}, revert("UniswapV2Router: INVALID_PATH")
	}
	if m.reserveToken.Sign() == 0 || m.reserveWETH.Sign() == 0 {
		return common.Hash{}, revert("UniswapV2Library: INSUFFICIENT_LIQUIDITY")
	}
	value := valueOf(opts)
	sender := m.sender()
	if m.native(sender).Cmp(value) < 0 {
		return common.Hash{}, ErrInsufficientFunds
	}

	out := amountOut(value, m.reserveWETH, m.reserveToken)
	fee := m.transferFee(out)
	received := new(big.Int).Sub(out, fee)
	if amountOutMin != nil && received.Cmp(amountOutMin) < 0 {
		return common.Hash{}, revert("UniswapV2Router: INSUFFICIENT_OUTPUT_AMOUNT")
	}

	m.nativeBal[sender] = new(big.Int).Sub(m.native(sender), value)
	m.reserveWETH = new(big.Int).Add(m.reserveWETH, value)
	m.reserveToken = new(big.Int).Sub(m.reserveToken, out)
	m.tokenBal[to] = new(big.Int).Add(m.balance(to), received)
	m.tokenBal[TokenAddress] = new(big.Int).Add(m.balance(TokenAddress), fee)
	return m.nextTx(), nil
}

// SwapExactTokensForETHSupportingFeeOnTransferTokens sells tokens; the pool
// receives the input net of the transfer fee.
func (r *Router) SwapExactTokensForETHSupportingFeeOnTransferTokens(_ context.Context, amountIn, amountOutMin *big.Int,
	path []common.Address, to common.Address, deadline *big.Int) (common.Hash, error) {
	m := r.m
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("swapExactTokensForETHSupportingFeeOnTransferTokens"); err != nil {
		return common.Hash{}, err
	}
	if err := m.checkDeadline(deadline); err != nil {
		return common.Hash{}, err
	}
	if len(path) != 2 || path[0] != TokenAddress || path[1] != PairAddress {
		return common.Hash{}, revert("UniswapV2Router: INVALID_PATH")
	}
	if amountIn == nil || amountIn.Sign() <= 0 {
		return common.Hash{}, revert("UniswapV2Library: INSUFFICIENT_INPUT_AMOUNT")
	}
	if m.minSell != nil && amountIn.Cmp(m.minSell) < 0 {
		return common.Hash{}, revert("sell amount below minimum")
	}
	if m.reserveToken.Sign() == 0 || m.reserveWETH.Sign() == 0 {
		return common.Hash{}, revert("UniswapV2Library: INSUFFICIENT_LIQUIDITY")
	}
	sender := m.sender()
	if m.allowanceOf(sender, RouterAddress).Cmp(amountIn) < 0 || m.balance(sender).Cmp(amountIn) < 0 {
		return common.Hash{}, revert("TransferHelper: TRANSFER_FROM_FAILED")
	}

	fee := m.transferFee(amountIn)
	net := new(big.Int).Sub(amountIn, fee)
	out := amountOut(net, m.reserveToken, m.reserveWETH)
	if amountOutMin != nil && out.Cmp(amountOutMin) < 0 {
		return common.Hash{}, revert("UniswapV2Router: INSUFFICIENT_OUTPUT_AMOUNT")
	}

	m.tokenBal[sender] = new(big.Int).Sub(m.balance(sender), amountIn)
	m.setAllowance(sender, RouterAddress, new(big.Int).Sub(m.allowanceOf(sender, RouterAddress), amountIn))
	m.tokenBal[TokenAddress] = new(big.Int).Add(m.balance(TokenAddress), fee)
	m.reserveToken = new(big.Int).Add(m.reserveToken, net)
	m.reserveWETH = new(big.Int).Sub(m.reserveWETH, out)
	m.nativeBal[to] = new(big.Int).Add(m.native(to), out)
	return m.nextTx(), nil
}

func valueOf(opts contracts.TxOptions) *big.Int {
	if opts.Value == nil {
		return new(big.Int)
	}
	return opts.Value
}
