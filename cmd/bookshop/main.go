// Command bookshop is an interactive storefront client: browse the catalog,
// manage a cart that survives restarts and follows you across login, and
// place orders with price reconciliation.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/example/bookshop-client/internal/api"
	"github.com/example/bookshop-client/internal/cart"
	"github.com/example/bookshop-client/internal/checkout"
	"github.com/example/bookshop-client/internal/config"
	"github.com/example/bookshop-client/internal/currency"
	"github.com/example/bookshop-client/internal/model"
	"github.com/example/bookshop-client/internal/session"
	"github.com/example/bookshop-client/internal/storage"
	"github.com/example/bookshop-client/internal/token"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()
	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	store, err := newStorage(cfg)
	if err != nil {
		sugar.Fatalw("storage initialization error", "error", err.Error())
	}

	tokens := token.NewStore()
	client := api.NewClient(cfg.APIBaseURL, tokens, logger)
	sess := session.NewManager(client, tokens, store, logger)

	cartStore := cart.NewStore()
	persistence := cart.NewPersistenceManager(cartStore, store, logger)
	persistence.Bind(sess)

	reconciler := checkout.NewReconciler(client, cartStore, logger)
	converter := currency.NewConverter(cfg.RatesURL, logger)

	ctx := context.Background()
	sess.Initialize(ctx)

	if cfg.RatesURL != "" {
		if err := converter.FetchRates(ctx); err != nil {
			logger.Warn("using fallback exchange rates", zap.Error(err))
		}
	}

	app := &app{
		client:     client,
		sess:       sess,
		cart:       cartStore,
		reconciler: reconciler,
		converter:  converter,
		display:    currency.Base,
	}
	app.greet()
	app.loop(ctx)
}

func newStorage(cfg *config.Config) (storage.Storage, error) {
	switch cfg.StorageBackend {
	case config.BackendMemory:
		return storage.NewMemory(), nil
	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		return storage.NewRedis(client, "bookshop"), nil
	default:
		return storage.NewFile(cfg.StorageDir)
	}
}

type app struct {
	client     *api.Client
	sess       *session.Manager
	cart       *cart.Store
	reconciler *checkout.Reconciler
	converter  *currency.Converter
	display    string
}

func (a *app) greet() {
	if user := a.sess.Current(); user != nil {
		fmt.Printf("welcome back, %s %s\n", user.FirstName, user.LastName)
	} else {
		fmt.Println("browsing as guest; use `login <email> <password>` to sign in")
	}
}

func (a *app) loop(ctx context.Context) {
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Print("> ")
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) > 0 {
			if fields[0] == "quit" || fields[0] == "exit" {
				return
			}
			a.dispatch(ctx, fields[0], fields[1:])
		}
		fmt.Print("> ")
	}
}

func (a *app) dispatch(ctx context.Context, cmd string, args []string) {
	switch cmd {
	case "help":
		fmt.Println("commands: books [page], book <id>, add <id> [qty], rm <id>, qty <id> <n>,")
		fmt.Println("          cart, checkout, login <email> <password>, logout, whoami,")
		fmt.Println("          currency <USD|VND>, quit")
	case "books":
		a.books(ctx, args)
	case "book":
		a.book(ctx, args)
	case "add":
		a.add(ctx, args)
	case "rm":
		a.remove(args)
	case "qty":
		a.quantity(args)
	case "cart":
		a.showCart()
	case "checkout":
		a.checkout(ctx)
	case "login":
		a.login(ctx, args)
	case "logout":
		a.sess.Logout(ctx)
		fmt.Println("logged out")
	case "whoami":
		a.greet()
	case "currency":
		a.currency(args)
	default:
		fmt.Printf("unknown command %q, try `help`\n", cmd)
	}
}

func (a *app) books(ctx context.Context, args []string) {
	page := 1
	if len(args) > 0 {
		if p, err := strconv.Atoi(args[0]); err == nil && p > 0 {
			page = p
		}
	}
	list, err := a.client.ListBooks(ctx, api.BookListParams{Page: page, ItemsPerPage: 15})
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	for _, info := range list.Books {
		fmt.Printf("%4d  %-40s %-20s %s\n",
			info.Book.ID, info.Book.Title, info.AuthorName, a.price(info.FinalPrice))
	}
	fmt.Printf("page %d/%d (%d books)\n", list.CurrentPage, list.TotalPages, list.Count)
}

func (a *app) book(ctx context.Context, args []string) {
	if len(args) != 1 {
		fmt.Println("usage: book <id>")
		return
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		fmt.Println("usage: book <id>")
		return
	}
	info, err := a.client.GetBook(ctx, id)
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	fmt.Printf("%s by %s - %s\n", info.Book.Title, info.AuthorName, a.price(info.FinalPrice))
	if info.AvgRating != nil {
		fmt.Printf("rated %.1f across %d reviews\n", *info.AvgRating, info.ReviewCount)
	}
	if info.Book.Summary != "" {
		fmt.Println(info.Book.Summary)
	}
}

func (a *app) add(ctx context.Context, args []string) {
	if len(args) < 1 {
		fmt.Println("usage: add <id> [qty]")
		return
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		fmt.Println("usage: add <id> [qty]")
		return
	}
	qty := 1
	if len(args) > 1 {
		if q, err := strconv.Atoi(args[1]); err == nil {
			qty = q
		}
	}
	if qty < 1 || qty > model.MaxQuantity {
		fmt.Printf("quantity must be between 1 and %d\n", model.MaxQuantity)
		return
	}

	info, err := a.client.GetBook(ctx, id)
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	item := model.CartLineItem{
		ID:            info.Book.ID,
		Title:         info.Book.Title,
		Author:        info.AuthorName,
		Image:         info.Book.CoverPhoto,
		OriginalPrice: info.Book.Price,
	}
	if info.FinalPrice < info.Book.Price {
		sale := info.FinalPrice
		item.SalePrice = &sale
	}
	a.cart.AddItem(item, qty)
	fmt.Printf("added %q x%d\n", item.Title, qty)
}

func (a *app) remove(args []string) {
	if len(args) != 1 {
		fmt.Println("usage: rm <id>")
		return
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		fmt.Println("usage: rm <id>")
		return
	}
	a.cart.RemoveItem(id)
}

func (a *app) quantity(args []string) {
	if len(args) != 2 {
		fmt.Println("usage: qty <id> <n>")
		return
	}
	id, err1 := strconv.ParseInt(args[0], 10, 64)
	qty, err2 := strconv.Atoi(args[1])
	if err1 != nil || err2 != nil {
		fmt.Println("usage: qty <id> <n>")
		return
	}
	if qty > model.MaxQuantity {
		fmt.Printf("quantity must be at most %d\n", model.MaxQuantity)
		return
	}
	a.cart.UpdateQuantity(id, qty)
}

func (a *app) showCart() {
	items := a.cart.Items()
	if len(items) == 0 {
		fmt.Println("cart is empty")
		return
	}
	for _, it := range items {
		fmt.Printf("%4d  %-40s x%d  %s\n", it.ID, it.Title, it.Quantity, a.price(it.EffectivePrice()))
	}
	fmt.Printf("total: %s\n", a.price(a.cart.TotalPrice()))
}

func (a *app) checkout(ctx context.Context) {
	if !a.sess.IsAuthenticated() {
		fmt.Println("sign in before checking out")
		return
	}
	result, err := a.reconciler.Submit(ctx)
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	switch result.Outcome {
	case checkout.OutcomePlaced:
		fmt.Printf("order placed, total %s\n", a.price(result.FinalPrice))
	case checkout.OutcomeCorrected:
		fmt.Println("your cart changed while you were shopping:")
		for _, c := range result.Corrections {
			fmt.Println("  -", c.Message)
		}
		fmt.Println("review your cart and run `checkout` again")
	}
}

func (a *app) login(ctx context.Context, args []string) {
	if len(args) != 2 {
		fmt.Println("usage: login <email> <password>")
		return
	}
	if err := a.sess.Login(ctx, args[0], args[1]); err != nil {
		fmt.Println("login failed:", err)
		return
	}
	a.greet()
}

func (a *app) currency(args []string) {
	if len(args) != 1 {
		fmt.Printf("usage: currency <%s>\n", strings.Join(currency.Supported, "|"))
		return
	}
	code := strings.ToUpper(args[0])
	if _, err := a.converter.Convert(1, code); err != nil {
		fmt.Println("error:", err)
		return
	}
	a.display = code
	fmt.Println("prices now shown in", code)
}

func (a *app) price(usd float64) string {
	value, err := a.converter.Convert(usd, a.display)
	if err != nil {
		return currency.Format(usd, currency.Base)
	}
	return currency.Format(value, a.display)
}
