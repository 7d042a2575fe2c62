package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"checkout-service/models"

	"golang.org/x/sync/errgroup"
)

// maxConcurrentProductFetches caps parallel requests per cart.
const maxConcurrentProductFetches = 8

// ProductClient reads products from the product service's internal API.
type ProductClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewProductClient(baseURL string, timeout time.Duration) *ProductClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &ProductClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// FindByIDs fetches every id concurrently. Products answered with 404 are
// left out of the result.
func (c *ProductClient) FindByIDs(ctx context.Context, ids []string) (map[string]*models.Product, error) {
	out := make(map[string]*models.Product, len(ids))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentProductFetches)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			prod, err := c.fetchProduct(gctx, id)
			if err != nil || prod == nil {
				return err
			}
			mu.Lock()
			out[id] = prod
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ProductClient) fetchProduct(ctx context.Context, id string) (*models.Product, error) {
	endpoint := fmt.Sprintf("%s/products/internal/%s", c.baseURL, url.PathEscape(id))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("product service returned %d", resp.StatusCode)
	}

	var prod models.Product
	if err := json.NewDecoder(resp.Body).Decode(&prod); err != nil {
		return nil, err
	}
	if prod.ID == "" {
		prod.ID = id
	}
	return &prod, nil
}
