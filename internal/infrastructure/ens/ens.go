package ens

import (
	"context"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("ens")

// RegistryAddress is the mainnet ENS registry.
var RegistryAddress = common.HexToAddress("0x00000000000C2E074eC69A0dFb2997BA6C7d2e1e")

var (
	ErrNoProvider = errors.New("no ethereum provider reachable")
	ErrNoAddress  = errors.New("name has no address record")
	ErrNoName     = errors.New("address has no primary name")
)

const (
	registryABI = `[{"constant":true,"inputs":[{"name":"node","type":"bytes32"}],"name":"resolver","outputs":[{"name":"","type":"address"}],"type":"function"}]`
	resolverABI = `[
		{"constant":true,"inputs":[{"name":"node","type":"bytes32"}],"name":"addr","outputs":[{"name":"","type":"address"}],"type":"function"},
		{"constant":true,"inputs":[{"name":"node","type":"bytes32"}],"name":"name","outputs":[{"name":"","type":"string"}],"type":"function"}
	]`
)

var (
	registryContract = mustABI(registryABI)
	resolverContract = mustABI(resolverABI)
)

func mustABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(err)
	}
	return parsed
}

// Caller is the subset of ethclient.Client used for contract reads.
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

type Service struct {
	caller   Caller
	registry common.Address
	cache    *cache.Cache
	timeout  time.Duration
}

func NewService(caller Caller, timeout time.Duration) *Service {
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Service{
		caller:   caller,
		registry: RegistryAddress,
		cache:    cache.New(30*time.Minute, time.Hour),
		timeout:  timeout,
	}
}

// Dial tries providers in order and returns a service bound to the first one
// that answers eth_blockNumber.
func Dial(ctx context.Context, providers []string, timeout time.Duration) (*Service, error) {
	for _, provider := range providers {
		dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		client, err := ethclient.DialContext(dialCtx, provider)
		if err != nil {
			cancel()
			slog.Warn("ens provider dial failed", slog.String("provider", provider), slog.String("error", err.Error()), slog.String("module", "ens"))
			continue
		}
		block, err := client.BlockNumber(dialCtx)
		cancel()
		if err != nil {
			client.Close()
			slog.Warn("ens provider unreachable", slog.String("provider", provider), slog.String("error", err.Error()), slog.String("module", "ens"))
			continue
		}
		slog.Info("ens provider connected", slog.String("provider", provider), slog.Uint64("block", block), slog.String("module", "ens"))
		return NewService(client, timeout), nil
	}
	return nil, ErrNoProvider
}

// Namehash computes the EIP-137 node of a name.
func Namehash(name string) [32]byte {
	var node [32]byte
	if name == "" {
		return node
	}
	labels := strings.Split(strings.ToLower(name), ".")
	for i := len(labels) - 1; i >= 0; i-- {
		labelHash := crypto.Keccak256([]byte(labels[i]))
		copy(node[:], crypto.Keccak256(node[:], labelHash))
	}
	return node
}

func (s *Service) call(ctx context.Context, contract abi.ABI, to common.Address, method string, node [32]byte) ([]any, error) {
	data, err := contract.Pack(method, node)
	if err != nil {
		return nil, err
	}
	out, err := s.caller.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "call %s", method)
	}
	return contract.Unpack(method, out)
}

func (s *Service) resolverOf(ctx context.Context, node [32]byte) (common.Address, error) {
	values, err := s.call(ctx, registryContract, s.registry, "resolver", node)
	if err != nil {
		return common.Address{}, err
	}
	addr, ok := values[0].(common.Address)
	if !ok {
		return common.Address{}, errors.New("unexpected resolver result")
	}
	return addr, nil
}

// Resolve returns the lowercase address a name points to.
func (s *Service) Resolve(ctx context.Context, name string) (string, error) {
	ctx, span := tracer.Start(ctx, "ENS.Service.Resolve")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	node := Namehash(name)
	resolver, err := s.resolverOf(ctx, node)
	if err != nil {
		span.RecordError(err)
		return "", err
	}
	if resolver == (common.Address{}) {
		return "", ErrNoAddress
	}

	values, err := s.call(ctx, resolverContract, resolver, "addr", node)
	if err != nil {
		span.RecordError(err)
		return "", err
	}
	addr, ok := values[0].(common.Address)
	if !ok || addr == (common.Address{}) {
		return "", ErrNoAddress
	}

	return strings.ToLower(addr.Hex()), nil
}

// LookupName returns the verified primary name of an address.
func (s *Service) LookupName(ctx context.Context, address string) (string, error) {
	address = strings.ToLower(address)
	if x, found := s.cache.Get(address); found {
		return x.(string), nil
	}

	ctx, span := tracer.Start(ctx, "ENS.Service.LookupName")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	node := Namehash(strings.TrimPrefix(address, "0x") + ".addr.reverse")
	resolver, err := s.resolverOf(ctx, node)
	if err != nil {
		span.RecordError(err)
		return "", err
	}
	if resolver == (common.Address{}) {
		return "", ErrNoName
	}

	values, err := s.call(ctx, resolverContract, resolver, "name", node)
	if err != nil {
		span.RecordError(err)
		return "", err
	}
	name, ok := values[0].(string)
	if !ok || name == "" {
		return "", ErrNoName
	}

	// a reverse record is only trusted if it resolves back
	forward, err := s.Resolve(ctx, name)
	if err != nil || forward != address {
		return "", ErrNoName
	}

	s.cache.Set(address, name, cache.DefaultExpiration)
	return name, nil
}
