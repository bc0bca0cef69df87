package extraction

// ReceiptSystemInstruction primes the model before the extraction prompt is
// sent. Shared by all gateway implementations.
const ReceiptSystemInstruction = `You are an expert at reading receipts and invoices. You carefully read every line of text in the image and extract accurate, complete information. You respond with JSON only.`

// ReceiptPrompt is the shared extraction prompt used by all AI providers.
const ReceiptPrompt = `Analyze this receipt image and extract the following information:

1. **isValid**: true if the image is a readable receipt or invoice, false otherwise. If false, include a short "message" explaining why.

2. **store_name**: The merchant or business name, usually the largest text at the top. Examples: "Walmart", "CVS Pharmacy", "Trader Joe's".

3. **store_address**: The street address printed on the receipt, if any.

4. **title**: A short display title for this purchase, starting with the store name.

5. **date**: The purchase date in ISO 8601 format (YYYY-MM-DD).

6. **items**: Every purchased line item, each with:
   - "name": the item description as printed
   - "price": the line price as a number (0 for free or point-redeemed items)
   - "category": exactly one of "Groceries", "Dining", "Shopping", "Health", "Transport", "Services", "Entertainment", "Other"
   - "original_price": the pre-discount price, when a discount applies
   - "discount_description": the discount text as printed, when present
   - "isDiscount": true when the line reflects a discounted item

7. **total_amount**: The grand total as a number (e.g. 42.75 for $42.75).

8. **total_tax**: The total tax as a number, 0 if none is printed.

9. **currency**: The ISO 4217 currency code, e.g. "USD".

10. **payment_method**: How the purchase was paid, e.g. "Credit Card", "Cash".

11. **logo_search_term**: A short search term for the store's brand logo.

Return ONLY a single valid JSON object with these fields.

Important:
- Amounts must be numbers, not strings
- The date must be YYYY-MM-DD
- Use null for any field you cannot find
- Do not include any text before or after the JSON
- Do not use markdown code blocks`

// DefaultConfig is the generation configuration used for receipt extraction:
// low temperature for deterministic reads, strict JSON output.
func DefaultConfig() GenerationConfig {
	temperature := float32(0.1)
	topP := float32(0.95)
	topK := int32(40)
	maxTokens := int32(4096)
	return GenerationConfig{
		Temperature:     &temperature,
		TopP:            &topP,
		TopK:            &topK,
		MaxOutputTokens: &maxTokens,
		ResponseFormat:  ResponseFormatJSON,
	}
}
