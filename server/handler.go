package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/cosmofolio/go-cosmofolio/env"
	"github.com/cosmofolio/go-cosmofolio/service/logger"
	"github.com/cosmofolio/go-cosmofolio/service/multichain"
	"github.com/cosmofolio/go-cosmofolio/service/persist"
	sentryutil "github.com/cosmofolio/go-cosmofolio/service/sentry"
	"github.com/cosmofolio/go-cosmofolio/util"
)

func init() {
	env.RegisterValidation("ENV", "")
}

// Core holds the assembler plus the tracked address set the HTTP surface
// mutates. The address map is guarded here; the assembler has its own lock.
type Core struct {
	Provider *multichain.Provider

	mu    sync.Mutex
	addrs persist.AddressMap
}

func NewCore(provider *multichain.Provider) *Core {
	return &Core{Provider: provider, addrs: persist.AddressMap{}}
}

// Init boots the full server: sentry, provider wiring, routes. The returned
// cleanup drains in-flight fetches.
func Init(ctx context.Context) (*gin.Engine, func(), error) {
	sentryutil.Init()

	if env.GetStringOrDefault("ENV", "local") != "production" {
		gin.SetMode(gin.DebugMode)
		logrus.SetLevel(logrus.DebugLevel)
	}

	// nil selects the provider's default client with a request timeout
	provider, cleanup, err := NewPortfolioProvider(ctx, nil, multichain.Hooks{
		OnAddressFetched: func(chain persist.Chain) {
			logger.For(ctx).Infof("finished fetching %s", chain)
		},
	})
	if err != nil {
		return nil, nil, err
	}

	router := gin.Default()
	router.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "DELETE"},
		AllowHeaders:    []string{"Content-Type"},
	}))

	return HandlersInit(router, NewCore(provider)), cleanup, nil
}

// HandlersInit registers the snapshot API on router.
func HandlersInit(router *gin.Engine, core *Core) *gin.Engine {
	router.GET("/alive", util.HealthCheckHandler())
	router.GET("/portfolio", core.getPortfolio)
	router.GET("/offers", core.getOffers)
	router.POST("/addresses", core.addAddress)
	router.DELETE("/addresses/:key", core.removeAddress)
	return router
}

func (c *Core) getPortfolio(ctx *gin.Context) {
	snapshot := c.Provider.Snapshot()
	if chainName := ctx.Query("chain"); chainName != "" {
		chain, ok := persist.ChainFromName(chainName)
		if !ok {
			util.ErrResponse(ctx, http.StatusBadRequest, fmt.Errorf("unknown chain %q", chainName))
			return
		}
		snapshot.NFTs = multichain.FilterByChain(snapshot.NFTs, chain)
	}
	ctx.JSON(http.StatusOK, snapshot)
}

func (c *Core) getOffers(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, c.Provider.Snapshot().Offers)
}

type addAddressInput struct {
	Chain   string          `json:"chain" binding:"required"`
	Address persist.Address `json:"address" binding:"required"`
	Manual  bool            `json:"manual"`
}

func (c *Core) addAddress(ctx *gin.Context) {
	var input addAddressInput
	if err := ctx.ShouldBindJSON(&input); err != nil {
		util.ErrResponse(ctx, http.StatusBadRequest, err)
		return
	}
	chain, ok := persist.ChainFromName(input.Chain)
	if !ok {
		util.ErrResponse(ctx, http.StatusBadRequest, fmt.Errorf("unknown chain %q", input.Chain))
		return
	}

	c.mu.Lock()
	var key persist.AddressKey
	var err error
	if input.Manual {
		key, err = c.addrs.AddManual(chain, input.Address)
	} else {
		key = persist.AddressKey(chain.String())
		err = c.addrs.SetConnected(chain, input.Address)
	}
	if err != nil {
		c.mu.Unlock()
		util.ErrResponse(ctx, http.StatusBadRequest, err)
		return
	}
	addrs := c.addrs.Clone()
	c.mu.Unlock()

	// the fetch outlives this request; detach it from the request's cancel
	dispatched := c.Provider.SyncAddresses(context.WithoutCancel(ctx.Request.Context()), addrs)
	ctx.JSON(http.StatusOK, gin.H{"key": key, "dispatched": dispatched})
}

func (c *Core) removeAddress(ctx *gin.Context) {
	key := persist.AddressKey(ctx.Param("key"))
	chain, ok := key.Chain()
	if !ok {
		util.ErrResponse(ctx, http.StatusBadRequest, fmt.Errorf("unknown address key %q", key))
		return
	}

	c.mu.Lock()
	address, tracked := c.addrs[key]
	if !tracked {
		c.mu.Unlock()
		ctx.JSON(http.StatusNotFound, util.ErrorResponse{Error: "address not tracked"})
		return
	}
	c.addrs.Remove(key)
	addrs := c.addrs.Clone()
	c.mu.Unlock()

	if key.IsManual() {
		c.Provider.RemoveManualAddress(chain, address, addrs)
	} else {
		// a connected-address change resets the whole portfolio
		c.Provider.Reset()
		c.Provider.SyncAddresses(context.WithoutCancel(ctx.Request.Context()), addrs)
	}
	ctx.Status(http.StatusNoContent)
}
