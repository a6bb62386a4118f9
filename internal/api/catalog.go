package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// Book mirrors the backend book record.
type Book struct {
	ID         int64   `json:"id"`
	CategoryID int64   `json:"category_id"`
	AuthorID   int64   `json:"author_id"`
	Title      string  `json:"book_title"`
	Summary    string  `json:"book_summary"`
	Price      float64 `json:"book_price"`
	CoverPhoto string  `json:"book_cover_photo"`
}

// BookInfo is a book plus its computed listing fields.
type BookInfo struct {
	Book           Book     `json:"book"`
	FinalPrice     float64  `json:"final_price"`
	DiscountAmount *float64 `json:"discount_amount,omitempty"`
	AvgRating      *float64 `json:"avg_rating,omitempty"`
	ReviewCount    int      `json:"review_count"`
	AuthorName     string   `json:"author_name"`
	CategoryName   string   `json:"category_name"`
}

// BookListParams are the query parameters of GET /books. Zero values are
// omitted from the query.
type BookListParams struct {
	Page         int
	ItemsPerPage int    // one of 5, 15, 20, 25 (server-validated)
	SortBy       string // on_sale, popularity, price_asc, price_desc, recommend
	CategoryName string
	AuthorName   string
	MinRating    int
}

func (p BookListParams) values() url.Values {
	q := url.Values{}
	if p.Page > 0 {
		q.Set("page", strconv.Itoa(p.Page))
	}
	if p.ItemsPerPage > 0 {
		q.Set("items_per_page", strconv.Itoa(p.ItemsPerPage))
	}
	if p.SortBy != "" {
		q.Set("sort_by", p.SortBy)
	}
	if p.CategoryName != "" {
		q.Set("category_name", p.CategoryName)
	}
	if p.AuthorName != "" {
		q.Set("author_name", p.AuthorName)
	}
	if p.MinRating > 0 {
		q.Set("min_rating", strconv.Itoa(p.MinRating))
	}
	return q
}

// BookList is a page of books with pagination bookkeeping.
type BookList struct {
	Books        []BookInfo `json:"books"`
	Count        int        `json:"count"`
	CurrentPage  int        `json:"current_page"`
	ItemsPerPage int        `json:"items_per_page"`
	TotalPages   int        `json:"total_pages"`
	StartItem    int        `json:"start_item"`
	EndItem      int        `json:"end_item"`
}

// Category is a catalog filter option.
type Category struct {
	ID          int64  `json:"id"`
	Name        string `json:"category_name"`
	Description string `json:"category_desc"`
}

// Author is a catalog filter option.
type Author struct {
	ID   int64  `json:"id"`
	Name string `json:"author_name"`
	Bio  string `json:"author_bio"`
}

// Review is one customer review of a book.
type Review struct {
	ID      int64  `json:"id"`
	BookID  int64  `json:"book_id"`
	Title   string `json:"review_title"`
	Details string `json:"review_details"`
	Star    int    `json:"rating_star"`
	Date    string `json:"review_date"`
}

// ReviewList is a page of reviews with the per-star breakdown.
type ReviewList struct {
	Reviews      []Review `json:"reviews"`
	Count        int      `json:"count"`
	CurrentPage  int      `json:"current_page"`
	ItemsPerPage int      `json:"items_per_page"`
	TotalPages   int      `json:"total_pages"`
	AvgRating    float64  `json:"avg_rating"`
	ReviewsCount int      `json:"reviews_count"`
	FiveStars    int      `json:"five_stars"`
	FourStars    int      `json:"four_stars"`
	ThreeStars   int      `json:"three_stars"`
	TwoStars     int      `json:"two_stars"`
	OneStars     int      `json:"one_stars"`
}

// ReviewCreateRequest is the body of POST /reviews/{id}.
type ReviewCreateRequest struct {
	Title   string `json:"title"`
	Details string `json:"details,omitempty"`
	Star    int    `json:"star"`
}

// ListBooks fetches a filtered, sorted page of the catalog.
func (c *Client) ListBooks(ctx context.Context, params BookListParams) (*BookList, error) {
	var list BookList
	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/books",
		query:  params.values(),
	}, &list)
	if err != nil {
		return nil, err
	}
	return &list, nil
}

// GetBook fetches one book by id.
func (c *Client) GetBook(ctx context.Context, id int64) (*BookInfo, error) {
	var info BookInfo
	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   fmt.Sprintf("/books/%d", id),
	}, &info)
	if err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *Client) bookShelf(ctx context.Context, path string, limit int) ([]BookInfo, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var books []BookInfo
	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   path,
		query:  q,
	}, &books)
	if err != nil {
		return nil, err
	}
	return books, nil
}

// RecommendedBooks fetches the recommendation shelf.
func (c *Client) RecommendedBooks(ctx context.Context, limit int) ([]BookInfo, error) {
	return c.bookShelf(ctx, "/books/recommend", limit)
}

// MostReviewedBooks fetches the popularity shelf.
func (c *Client) MostReviewedBooks(ctx context.Context, limit int) ([]BookInfo, error) {
	return c.bookShelf(ctx, "/books/most_reviews", limit)
}

// Categories fetches the category filter options.
func (c *Client) Categories(ctx context.Context) ([]Category, error) {
	var categories []Category
	err := c.do(ctx, request{method: http.MethodGet, path: "/categories"}, &categories)
	if err != nil {
		return nil, err
	}
	return categories, nil
}

// Authors fetches the author filter options.
func (c *Client) Authors(ctx context.Context) ([]Author, error) {
	var authors []Author
	err := c.do(ctx, request{method: http.MethodGet, path: "/authors"}, &authors)
	if err != nil {
		return nil, err
	}
	return authors, nil
}

// ReviewListParams are the query parameters of GET /reviews/{id}.
type ReviewListParams struct {
	Page         int
	ItemsPerPage int
	Star         int    // filter by star rating, 0 = all
	SortBy       string // newest, oldest
}

func (p ReviewListParams) values() url.Values {
	q := url.Values{}
	if p.Page > 0 {
		q.Set("page", strconv.Itoa(p.Page))
	}
	if p.ItemsPerPage > 0 {
		q.Set("items_per_page", strconv.Itoa(p.ItemsPerPage))
	}
	if p.Star > 0 {
		q.Set("star", strconv.Itoa(p.Star))
	}
	if p.SortBy != "" {
		q.Set("sort_by", p.SortBy)
	}
	return q
}

// ListReviews fetches a page of reviews for a book.
func (c *Client) ListReviews(ctx context.Context, bookID int64, params ReviewListParams) (*ReviewList, error) {
	var list ReviewList
	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   fmt.Sprintf("/reviews/%d", bookID),
		query:  params.values(),
	}, &list)
	if err != nil {
		return nil, err
	}
	return &list, nil
}

// CreateReview posts a review for a book.
func (c *Client) CreateReview(ctx context.Context, bookID int64, review ReviewCreateRequest) error {
	return c.doJSON(ctx, http.MethodPost, fmt.Sprintf("/reviews/%d", bookID), review, nil)
}
