// Package bank models a single institution in an interbank lending network
// and the trial-scoped worklist of banks waiting to default.
//
// A bank owes money to its creditors. When it defaults, each solvent
// creditor absorbs a loss equal to the defaulting bank's interbank assets
// divided by that creditor's own debtor count. A creditor whose total assets
// fall below its liabilities is queued for default; the cascade engine
// drains the queue.
package bank
