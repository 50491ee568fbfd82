// Package indexer queries a The Graph subgraph for the on-chain history of a
// wallet address.
package indexer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Transaction is a native-asset transaction as returned by the subgraph.
// Numeric fields arrive as strings or numbers depending on the subgraph
// schema, so they are kept as json.Number.
type Transaction struct {
	ID          string      `json:"id"`
	Hash        string      `json:"hash"`
	From        string      `json:"from"`
	To          string      `json:"to"`
	Value       string      `json:"value"`
	GasPrice    string      `json:"gasPrice"`
	GasUsed     string      `json:"gasUsed"`
	MethodID    string      `json:"methodId"`
	Timestamp   json.Number `json:"timestamp"`
	BlockNumber json.Number `json:"blockNumber"`
}

// Token describes an ERC-20 contract
type Token struct {
	ID       string      `json:"id"`
	Symbol   string      `json:"symbol"`
	Name     string      `json:"name"`
	Decimals json.Number `json:"decimals"`
}

// TokenTransfer is one ERC-20 transfer touching the wallet
type TokenTransfer struct {
	ID          string      `json:"id"`
	From        string      `json:"from"`
	To          string      `json:"to"`
	Value       string      `json:"value"`
	Token       Token       `json:"token"`
	BlockNumber json.Number `json:"blockNumber"`
	Timestamp   json.Number `json:"timestamp"`
	Transaction struct {
		ID   string `json:"id"`
		Hash string `json:"hash"`
	} `json:"transaction"`
}

const walletTransactionsQuery = `query GetWalletTransactions($address: String!, $limit: Int!, $skip: Int!) {
  transactions(
    where: { or: [{ from: $address }, { to: $address }] }
    first: $limit
    skip: $skip
    orderBy: timestamp
    orderDirection: desc
  ) {
    id
    hash
    from
    to
    value
    gasPrice
    gasUsed
    methodId
    timestamp
    blockNumber
  }
}`

const tokenTransfersQuery = `query GetTokenTransfers($address: String!, $limit: Int!, $skip: Int!) {
  transfers: erc20Transfers(
    where: { or: [{ from: $address }, { to: $address }] }
    first: $limit
    skip: $skip
    orderBy: timestamp
    orderDirection: desc
  ) {
    id
    from
    to
    value
    token {
      id
      symbol
      name
      decimals
    }
    blockNumber
    timestamp
    transaction {
      id
      hash
    }
  }
}`

// Client is a minimal GraphQL-over-HTTP client for the subgraph endpoint
type Client struct {
	endpoint string
	client   *http.Client
	log      zerolog.Logger
}

// NewClient creates a new subgraph client
func NewClient(endpoint string, log zerolog.Logger) *Client {
	return &Client{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 30 * time.Second},
		log:      log.With().Str("client", "indexer").Logger(),
	}
}

// GetWalletTransactions returns one page of native transactions sent from or
// to address, newest first.
func (c *Client) GetWalletTransactions(ctx context.Context, address string, limit, skip int) ([]Transaction, error) {
	var data struct {
		Transactions []Transaction `json:"transactions"`
	}
	if err := c.query(ctx, walletTransactionsQuery, pageVariables(address, limit, skip), &data); err != nil {
		return nil, fmt.Errorf("failed to fetch wallet transactions: %w", err)
	}
	return data.Transactions, nil
}

// GetTokenTransfers returns one page of ERC-20 transfers from or to address,
// newest first.
func (c *Client) GetTokenTransfers(ctx context.Context, address string, limit, skip int) ([]TokenTransfer, error) {
	var data struct {
		Transfers []TokenTransfer `json:"transfers"`
	}
	if err := c.query(ctx, tokenTransfersQuery, pageVariables(address, limit, skip), &data); err != nil {
		return nil, fmt.Errorf("failed to fetch token transfers: %w", err)
	}
	return data.Transfers, nil
}

func pageVariables(address string, limit, skip int) map[string]interface{} {
	return map[string]interface{}{
		"address": strings.ToLower(address),
		"limit":   limit,
		"skip":    skip,
	}
}

type graphQLRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

func (c *Client) query(ctx context.Context, query string, variables map[string]interface{}, out interface{}) error {
	body, err := json.Marshal(graphQLRequest{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	c.log.Debug().
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("Subgraph query completed")

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("subgraph returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var envelope graphQLResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	if len(envelope.Errors) > 0 {
		msgs := make([]error, 0, len(envelope.Errors))
		for _, e := range envelope.Errors {
			msgs = append(msgs, errors.New(e.Message))
		}
		return fmt.Errorf("subgraph errors: %w", errors.Join(msgs...))
	}
	if len(envelope.Data) == 0 || string(envelope.Data) == "null" {
		return errors.New("subgraph returned no data")
	}

	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("failed to decode data: %w", err)
	}
	return nil
}
