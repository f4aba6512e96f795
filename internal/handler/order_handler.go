package handler

import (
	"encoding/csv"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"

	"github.com/ulaundry/laundry-api/internal/domain/entity"
	"github.com/ulaundry/laundry-api/internal/handler/dto"
	"github.com/ulaundry/laundry-api/internal/handler/helper"
	"github.com/ulaundry/laundry-api/internal/middleware"
	"github.com/ulaundry/laundry-api/internal/service"
)

// OrderHandler serves checkout, order views and the moderator queue.
type OrderHandler struct {
	orderService  *service.OrderService
	razorpayKeyID string
}

func NewOrderHandler(orderService *service.OrderService, razorpayKeyID string) *OrderHandler {
	return &OrderHandler{orderService: orderService, razorpayKeyID: razorpayKeyID}
}

func (h *OrderHandler) Create(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)
	var req dto.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request data")
		return
	}
	lines := make([]service.OrderLine, len(req.Items))
	for i, item := range req.Items {
		lines[i] = service.OrderLine{ItemID: item.ItemID, Quantity: item.Quantity}
	}

	order, err := h.orderService.PlaceOrder(c.Request.Context(), userID, service.PlaceOrderInput{
		Items:    lines,
		Currency: req.Currency,
		Date:     req.Date,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.CheckoutResponse{
		Order:           dto.NewOrderResponse(order),
		RazorpayOrderID: order.RazorpayOrderID,
		RazorpayKeyID:   h.razorpayKeyID,
	})
}

func (h *OrderHandler) VerifySignature(c *gin.Context) {
	var req dto.VerifySignatureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "All fields are mandatory for payment verification")
		return
	}
	order, err := h.orderService.VerifyPayment(c.Request.Context(), req.RazorpayOrderID, req.RazorpayPaymentID, req.RazorpaySignature)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": dto.NewOrderResponse(order), "message": "Payment verified successfully"})
}

func (h *OrderHandler) Get(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)
	role, _ := middleware.GetRole(c)
	order, err := h.orderService.Get(c.Request.Context(), userID, role, c.GetUint("order_id"))
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": dto.NewOrderResponse(order)})
}

func (h *OrderHandler) ListForUser(c *gin.Context) {
	viewerID, _ := middleware.GetUserID(c)
	role, _ := middleware.GetRole(c)
	orders, err := h.orderService.ListForUser(c.Request.Context(), viewerID, role, c.GetUint("user_param_id"))
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": dto.NewOrderResponses(orders)})
}

func (h *OrderHandler) ListAll(c *gin.Context) {
	orders, err := h.orderService.ListAll(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": dto.NewOrderResponses(orders)})
}

func (h *OrderHandler) ListByStatus(c *gin.Context) {
	orders, err := h.orderService.ListByStatus(c.Request.Context(), entity.OrderStatus(c.Param("status")))
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": dto.NewOrderResponses(orders)})
}

func (h *OrderHandler) Cancel(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)
	order, err := h.orderService.Cancel(c.Request.Context(), userID, c.GetUint("order_id"))
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": dto.NewOrderResponse(order), "message": "Order cancelled successfully"})
}

func (h *OrderHandler) UpdateStatus(c *gin.Context) {
	order, err := h.orderService.UpdateStatus(c.Request.Context(), c.GetUint("order_id"), entity.OrderStatus(c.Param("status")))
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": dto.NewOrderResponse(order), "message": "Order status updated successfully"})
}

// Export downloads every order as xlsx (default) or csv (?format=csv).
func (h *OrderHandler) Export(c *gin.Context) {
	orders, err := h.orderService.ListAll(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	filename := fmt.Sprintf("orders_%s", time.Now().Format("20060102_150405"))
	if c.Query("format") == "csv" {
		h.exportCSV(c, orders, filename)
		return
	}
	h.exportXLSX(c, orders, filename)
}

var exportHeaders = []string{"Order ID", "User ID", "Date", "Status", "Paid", "Items", "Amount", "Currency", "Razorpay Order", "Lines"}

func exportRow(o *entity.Order) []string {
	paid := "No"
	if o.MoneyPaid {
		paid = "Yes"
	}
	lines := ""
	for i, item := range o.Items {
		if i > 0 {
			lines += "; "
		}
		lines += fmt.Sprintf("%s x%d", item.Title, item.Quantity)
	}
	return []string{
		strconv.FormatUint(uint64(o.ID), 10),
		strconv.FormatUint(uint64(o.UserID), 10),
		o.Date.Format("2006-01-02"),
		string(o.Status),
		paid,
		strconv.Itoa(o.TotalClothes),
		helper.FormatMinorUnits(o.MoneyAmount),
		o.Currency,
		o.RazorpayOrderID,
		sanitizeForExcel(lines),
	}
}

func (h *OrderHandler) exportCSV(c *gin.Context, orders []entity.Order, filename string) {
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s.csv\"", filename))

	writer := csv.NewWriter(c.Writer)
	defer writer.Flush()
	writer.Write(exportHeaders)
	for i := range orders {
		writer.Write(exportRow(&orders[i]))
	}
}

func (h *OrderHandler) exportXLSX(c *gin.Context, orders []entity.Order, filename string) {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Orders"
	f.SetSheetName("Sheet1", sheetName)
	sw, err := f.NewStreamWriter(sheetName)
	if err != nil {
		log.Printf("[OrderHandler] StreamWriter creation failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create Excel file", "error_type": "internal_server_error"})
		return
	}

	header := make([]interface{}, len(exportHeaders))
	for i, v := range exportHeaders {
		header[i] = v
	}
	if err := sw.SetRow("A1", header); err != nil {
		log.Printf("[OrderHandler] header row failed: %v", err)
	}
	for i := range orders {
		values := exportRow(&orders[i])
		row := make([]interface{}, len(values))
		for j, v := range values {
			row[j] = v
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := sw.SetRow(cell, row); err != nil {
			log.Printf("[OrderHandler] row %d failed: %v", i+2, err)
		}
	}
	if err := sw.Flush(); err != nil {
		log.Printf("[OrderHandler] flush failed: %v", err)
	}

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s.xlsx\"", filename))
	if err := f.Write(c.Writer); err != nil {
		log.Printf("[OrderHandler] writing workbook failed: %v", err)
	}
}

// sanitizeForExcel neutralises values that spreadsheet apps would run as formulas.
func sanitizeForExcel(s string) string {
	if len(s) == 0 {
		return s
	}
	if s[0] == '=' || s[0] == '+' || s[0] == '-' || s[0] == '@' || s[0] == '\t' || s[0] == '\r' {
		return "'" + s
	}
	return s
}
