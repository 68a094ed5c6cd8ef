package flow

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/aura-dev/aura/internal/models"
)

// enterSale lists the inventory and parks in the selection stage, or in the
// custom-request stage when nothing is catalogued.
func (t *turn) enterSale(node *models.Node, d *models.SaleData) error {
	if t.engine.inventory == nil {
		return fmt.Errorf("sale: %w", ErrPortUnavailable)
	}
	ctx, cancel := t.portCtx()
	items, err := t.engine.inventory.ListAvailableItems(ctx)
	cancel()
	if err != nil {
		slog.Error("turn.enterSale: failed to list inventory", "error", err, "userID", t.st.UserID, "node", node.ID)
		t.say(saleUnavailable)
		t.finish(false)
		return nil
	}

	if len(items) == 0 {
		t.st.Sale = &models.SaleState{Stage: models.SaleStageCustomName, NodeID: node.ID}
		t.say(orDefault(d.EmptyStockMessage, defaultEmptyStock))
		t.park(node.ID)
		return nil
	}

	t.st.Sale = &models.SaleState{Stage: models.SaleStageSelection, Items: items, NodeID: node.ID}
	t.say(renderItems(d, items))
	t.park(node.ID)
	return nil
}

func (t *turn) handleSale(text string) error {
	sale := t.st.Sale
	if t.engine.inventory == nil {
		return fmt.Errorf("sale: %w", ErrPortUnavailable)
	}
	input := strings.TrimSpace(text)
	t.st.WaitingForInput = true

	switch sale.Stage {
	case models.SaleStageSelection:
		if input == "0" {
			sale.Stage = models.SaleStageCustomName
			t.say(askCustomItem)
			return nil
		}
		n, err := strconv.Atoi(input)
		if err != nil || n < 1 || n > len(sale.Items) {
			t.say(invalidSaleItem + "\n\n" + itemList(sale.Items))
			return nil
		}
		item := sale.Items[n-1]
		if item.StockQuantity <= 0 {
			slog.Debug("turn.handleSale: item out of stock", "userID", t.st.UserID, "item", item.ID)
			t.say(saleItemOutOfStock + "\n\n" + itemList(sale.Items))
			return nil
		}
		sale.Stage = models.SaleStagePhone
		sale.Selected = &item
		t.say(fmt.Sprintf(askPhone, item.Name, formatBRL(item.UnitPrice)))
		return nil

	case models.SaleStageCustomName:
		if input == "" {
			t.say(askCustomItem)
			return nil
		}
		ctx, cancel := t.portCtx()
		receipt, err := t.engine.inventory.RegisterSaleRequest(ctx, models.SaleRequest{
			UserID:     t.st.UserID,
			WorkflowID: t.wf.ID,
			Type:       models.SaleRequestCustom,
			Status:     models.SaleRequestPending,
			ItemName:   input,
			CreatedAt:  t.now,
		})
		cancel()
		if err != nil {
			slog.Error("turn.handleSale: failed to register request", "error", err, "userID", t.st.UserID)
			t.say(saleRegisterFailed)
			t.finish(false)
			return nil
		}
		deadline := ""
		if receipt.ContactBy != nil {
			deadline = formatDeadline(*receipt.ContactBy)
		}
		t.say(fmt.Sprintf(customRequestDone, input, deadline))
		return t.leaveSale(sale.NodeID)

	case models.SaleStagePhone:
		if input == "" || sale.Selected == nil {
			t.say(askPhoneAgain)
			return nil
		}
		item := *sale.Selected
		ctx, cancel := t.portCtx()
		defer cancel()
		// Stock is taken first so a lost race never leaves a confirmed request behind.
		if _, err := t.engine.inventory.RegisterSaleTransaction(ctx, item, input); err != nil {
			slog.Error("turn.handleSale: failed to register transaction", "error", err, "userID", t.st.UserID, "item", item.ID)
			t.say(saleRegisterFailed)
			t.finish(false)
			return nil
		}
		receipt, err := t.engine.inventory.RegisterSaleRequest(ctx, models.SaleRequest{
			UserID:     t.st.UserID,
			WorkflowID: t.wf.ID,
			Type:       models.SaleRequestStock,
			Status:     models.SaleRequestConfirmed,
			ItemID:     item.ID,
			ItemName:   item.Name,
			Contact:    input,
			CreatedAt:  t.now,
		})
		if err != nil {
			slog.Error("turn.handleSale: sale recorded but request not saved", "error", err, "userID", t.st.UserID, "item", item.ID)
			t.say(saleRegisterFailed)
			t.finish(false)
			return nil
		}
		deadline := ""
		if receipt.PickupDeadline != nil {
			deadline = formatDeadline(*receipt.PickupDeadline)
		}
		slog.Info("turn.handleSale: purchase registered", "userID", t.st.UserID, "item", item.ID)
		t.say(fmt.Sprintf(purchaseDone, item.Name, formatBRL(item.UnitPrice), deadline))
		return t.leaveSale(sale.NodeID)
	}

	slog.Warn("turn.handleSale: unknown stage, restarting sale", "userID", t.st.UserID, "stage", sale.Stage)
	t.st.Sale = nil
	node := t.wf.Node(sale.NodeID)
	if d, ok := nodeData[*models.SaleData](node); ok {
		return t.enterSale(node, d)
	}
	t.finish(true)
	return nil
}

func (t *turn) leaveSale(nodeID string) error {
	t.st.Sale = nil
	t.st.WaitingForInput = false
	return t.advance(t.next(nodeID))
}

// nodeData returns the typed payload of node when it has variant D.
func nodeData[D models.NodeData](node *models.Node) (D, bool) {
	var zero D
	if node == nil {
		return zero, false
	}
	d, ok := node.Data.(D)
	return d, ok
}
