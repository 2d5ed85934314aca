/*Package callregion implements the call-region filter used when gathering
  structural-variant evidence: a union of genomic intervals loaded from a BED
  file, plus samtools-style region string parsing.
  (Overlapping and touching BED intervals are merged; only coverage is kept.)
  Every position is assumed to fit in a PosType, i.e. an int32, which is what
  BAM files and svlocus intervals are limited to.
*/
package callregion
