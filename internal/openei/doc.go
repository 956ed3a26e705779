// Package openei is a small client for the [OpenEI utility rates API].
//
// A request goes through three pieces:
//
//  1. A [Builder] accumulates the base URL and query parameters
//     ([Builder.AddParam] chains) and performs one GET in [Builder.Execute].
//     [HTTPBuilder] talks to the network, [FakeBuilder] returns a canned body.
//
//  2. A [Processor] turns the raw [Response] into a [Result].
//     [RateItemsProcessor] decodes the items array, [RawProcessor] passes the
//     body through.
//
//  3. A [Director] runs the builder and hands the response to the processor.
//
// [UtilityRatesService] and [FakeUtilityRatesService] wire the three together
// behind [RatesService]: default parameters (api_key, version, start_date)
// are merged with the caller's, caller values winning.
//
// [OpenEI utility rates API]: https://openei.org/services/doc/rest/util_rates
package openei
